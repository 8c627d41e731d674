package orchestrator

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap/zapcore"

	"github.com/zkleaderboard/verifier/types"
)

// Kind is the terminal classification of a run.
type Kind string

const (
	Succeeded         Kind = "succeeded"
	TimedOut          Kind = "timed_out"
	ProofFailed       Kind = "proof_failed"
	AttestationFailed Kind = "attestation_failed"
	SettlementFailed  Kind = "settlement_failed"
)

// Stage is the position of a run in the pipeline.
// Terminal stages share their names with the outcome kinds.
type Stage string

const (
	StagePending    Stage = "pending"
	StageSubmitting Stage = "submitting"
	StagePolling    Stage = "polling"
	StageAttesting  Stage = "attesting"
	StageSettling   Stage = "settling"
)

func (s Stage) String() string {
	return string(s)
}

func (s Stage) Terminal() bool {
	switch Kind(s) {
	case Succeeded, TimedOut, ProofFailed, AttestationFailed, SettlementFailed:
		return true
	}
	return false
}

// failure is the outcome of a run that stops at the stage.
func (s Stage) failure() Kind {
	switch s {
	case StagePolling:
		return TimedOut
	case StageAttesting:
		return AttestationFailed
	case StageSettling:
		return SettlementFailed
	}
	return ProofFailed
}

// Outcome is the single result of a run.
// Journal, Results, Attestation and Receipt are set only when Kind is Succeeded.
// Err is set for every other kind.
type Outcome struct {
	RunID       string
	Kind        Kind
	Addresses   types.AddressSet
	Job         types.ProofJob
	Journal     hexutil.Bytes
	Results     []types.AddressResult
	Attestation *types.AttestationRecord
	Receipt     *types.SettlementReceipt
	Err         error
}

func (o *Outcome) Succeeded() bool {
	return o.Kind == Succeeded
}

// implement zap.ObjectMarshaler interface.
func (o *Outcome) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", o.RunID)
	enc.AddString("kind", string(o.Kind))
	enc.AddInt("addresses", len(o.Addresses))
	if o.Job != "" {
		enc.AddString("job", string(o.Job))
	}
	if o.Attestation != nil {
		enc.AddUint64("attestation_id", o.Attestation.AttestationID)
	}
	if o.Receipt != nil {
		enc.AddString("tx", o.Receipt.TxHash.Hex())
	}
	if o.Err != nil {
		enc.AddString("error", o.Err.Error())
	}
	return nil
}
