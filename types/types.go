package types

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/minio/sha256-simd"
	"go.uber.org/zap/zapcore"
)

// AddressSet is the ordered batch of addresses a run is executed for.
type AddressSet []string

// Validate checks that the set is non-empty and holds unique, non-blank addresses.
// Uniqueness is case-insensitive.
func (a AddressSet) Validate() error {
	if len(a) == 0 {
		return fmt.Errorf("%w: empty address set", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(a))
	for i, addr := range a {
		key := normalizeAddress(addr)
		if key == "" {
			return fmt.Errorf("%w: blank address at position %d", ErrInvalidRequest, i)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: duplicate address %s", ErrInvalidRequest, addr)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Digest identifies the batch. Addresses are normalized, order is significant.
func (a AddressSet) Digest() common.Hash {
	hasher := sha256.New()
	for _, addr := range a {
		hasher.Write([]byte(normalizeAddress(addr)))
		hasher.Write([]byte{0})
	}
	var digest common.Hash
	hasher.Sum(digest[:0])
	return digest
}

// Index returns the position of addr in the set or -1.
func (a AddressSet) Index(addr string) int {
	key := normalizeAddress(addr)
	for i, candidate := range a {
		if normalizeAddress(candidate) == key {
			return i
		}
	}
	return -1
}

func (a AddressSet) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, addr := range a {
		enc.AppendString(addr)
	}
	return nil
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ProofJob is the opaque identifier of an asynchronous proof job.
type ProofJob string

type ProofState string

const (
	ProofPending   ProofState = "pending"
	ProofCompleted ProofState = "completed"
	ProofFailed    ProofState = "failed"
)

// AddressResult is the per-address verdict produced by the proof.
type AddressResult struct {
	Address   string `json:"address"`
	IsTopHalf bool   `json:"is_top_half"`
}

// ProofStatus is the proof service view of a job.
// Proof material is only set once the job completed.
type ProofStatus struct {
	Status  ProofState      `json:"status"`
	Proof   hexutil.Bytes   `json:"proof,omitempty"`
	Journal hexutil.Bytes   `json:"journal,omitempty"`
	ImageID hexutil.Bytes   `json:"image_id,omitempty"`
	Results []AddressResult `json:"results,omitempty"`
}

// UnmarshalJSON accepts null proof material, which the service sends for pending jobs.
func (s *ProofStatus) UnmarshalJSON(data []byte) error {
	var wire struct {
		Status  ProofState      `json:"status"`
		Proof   *hexutil.Bytes  `json:"proof"`
		Journal *hexutil.Bytes  `json:"journal"`
		ImageID *hexutil.Bytes  `json:"image_id"`
		Results []AddressResult `json:"results"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = ProofStatus{Status: wire.Status, Results: wire.Results}
	if wire.Proof != nil {
		s.Proof = *wire.Proof
	}
	if wire.Journal != nil {
		s.Journal = *wire.Journal
	}
	if wire.ImageID != nil {
		s.ImageID = *wire.ImageID
	}
	return nil
}

func (s *ProofStatus) Completed() bool {
	return s.Status == ProofCompleted
}

func (s *ProofStatus) Failed() bool {
	return s.Status == ProofFailed
}

// Winners orders the per-address results to match the addresses.
func (s *ProofStatus) Winners(addresses AddressSet) ([]bool, error) {
	if len(s.Results) != len(addresses) {
		return nil, fmt.Errorf("got %d results for %d addresses", len(s.Results), len(addresses))
	}
	winners := make([]bool, len(addresses))
	filled := make([]bool, len(addresses))
	for _, res := range s.Results {
		i := addresses.Index(res.Address)
		if i < 0 {
			return nil, fmt.Errorf("result for unknown address %s", res.Address)
		}
		if filled[i] {
			return nil, fmt.Errorf("duplicate result for address %s", res.Address)
		}
		winners[i] = res.IsTopHalf
		filled[i] = true
	}
	return winners, nil
}

// ProofDetails is the Merkle-inclusion material of an attestation.
type ProofDetails struct {
	Root           common.Hash   `json:"root"`
	Proof          []common.Hash `json:"proof"`
	NumberOfLeaves uint64        `json:"numberOfLeaves"`
	LeafIndex      uint64        `json:"leafIndex"`
	Leaf           common.Hash   `json:"leaf"`
}

// Validate checks the structural invariants of the inclusion proof:
// the leaf index is within the tree and the path length fits a binary tree
// of NumberOfLeaves leaves. Odd nodes may be promoted, so paths can be shorter
// than the tree height but never longer.
func (d *ProofDetails) Validate() error {
	if d.NumberOfLeaves == 0 {
		return fmt.Errorf("empty attestation tree")
	}
	if d.LeafIndex >= d.NumberOfLeaves {
		return fmt.Errorf("leaf index %d out of range for %d leaves", d.LeafIndex, d.NumberOfLeaves)
	}
	height := bits.Len64(d.NumberOfLeaves - 1)
	switch {
	case d.NumberOfLeaves == 1 && len(d.Proof) != 0:
		return fmt.Errorf("single leaf tree with %d path elements", len(d.Proof))
	case d.NumberOfLeaves > 1 && (len(d.Proof) == 0 || len(d.Proof) > height):
		return fmt.Errorf("path of %d elements for tree of %d leaves (height %d)", len(d.Proof), d.NumberOfLeaves, height)
	}
	return nil
}

// AttestationRecord is the finalized attestation of a proof.
type AttestationRecord struct {
	AttestationID uint64       `json:"attestationId"`
	ProofDetails  ProofDetails `json:"proofDetails"`
}

func (r *AttestationRecord) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("attestation_id", r.AttestationID)
	enc.AddString("root", r.ProofDetails.Root.Hex())
	enc.AddString("leaf", r.ProofDetails.Leaf.Hex())
	enc.AddUint64("leaf_index", r.ProofDetails.LeafIndex)
	enc.AddUint64("leaves", r.ProofDetails.NumberOfLeaves)
	return nil
}

// SettlementReceipt is the terminal artifact of a successful run.
type SettlementReceipt struct {
	TxHash      common.Hash `json:"transaction_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	Confirmed   bool        `json:"confirmed"`
}
