package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidRequest is returned for bad caller input. Not retryable.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrServiceUnavailable is a transient transport or remote failure.
	// The specific call that failed is safe to retry.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrJobNotFound is returned when the proof service doesn't know a job id.
	ErrJobNotFound = errors.New("proof job not found")

	// ErrTimedOut means the poll budget was exhausted. The proof may still
	// complete later, the job must not be resubmitted.
	ErrTimedOut = errors.New("proof generation timed out")
	// ErrProofFailed means the proof service explicitly reported failure.
	ErrProofFailed = errors.New("proof generation failed")

	ErrAttestationFailed  = errors.New("attestation failed")
	ErrAttestationTimeout = errors.New("attestation confirmation timed out")

	ErrSettlementFailed    = errors.New("settlement failed")
	ErrSettlementAmbiguous = errors.New("settlement outcome is unknown")
	// ErrAlreadySettled is returned when a settlement for the same batch was
	// already submitted by this service.
	ErrAlreadySettled = errors.New("batch already settled")
)

// AmbiguousSettlementError is returned when a settlement transaction was sent
// but its finality could not be established. The transaction may still be
// mined, so it must not be resent blindly.
type AmbiguousSettlementError struct {
	TxHash common.Hash
	Err    error
}

func (e *AmbiguousSettlementError) Error() string {
	return fmt.Sprintf("%v: tx %s: %v", ErrSettlementAmbiguous, e.TxHash.Hex(), e.Err)
}

func (e *AmbiguousSettlementError) Unwrap() []error {
	return []error{ErrSettlementAmbiguous, ErrSettlementFailed, e.Err}
}
