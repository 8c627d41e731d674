package attestation

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventIncludedInBlock      EventType = "includedInBlock"
	EventFinalized            EventType = "finalized"
	EventAttestationConfirmed EventType = "attestationConfirmed"
	EventError                EventType = "error"
)

// Event is a lifecycle notification of a submitted proof.
type Event struct {
	Type          EventType    `json:"type"`
	AttestationID *uint64      `json:"attestationId,omitempty"`
	LeafDigest    *common.Hash `json:"leafDigest,omitempty"`
	BlockHash     *common.Hash `json:"blockHash,omitempty"`
	Error         string       `json:"error,omitempty"`
}

type Stage int

const (
	StageSubmitted Stage = iota
	StageIncluded
	StageFinalized
	StageConfirmed
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageSubmitted:
		return "submitted"
	case StageIncluded:
		return "included"
	case StageFinalized:
		return "finalized"
	case StageConfirmed:
		return "confirmed"
	case StageFailed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// lifecycle tracks a single submission through
// submitted -> included -> finalized -> confirmed.
// Any error event or out-of-order event moves it to failed.
type lifecycle struct {
	stage         Stage
	attestationID uint64
	leafDigest    common.Hash
	blockHash     common.Hash
}

func (l *lifecycle) done() bool {
	return l.stage == StageConfirmed || l.stage == StageFailed
}

// apply advances the lifecycle. Unknown event types are ignored.
func (l *lifecycle) apply(ev Event) error {
	if l.done() {
		return fmt.Errorf("event %s after terminal stage %s", ev.Type, l.stage)
	}
	switch ev.Type {
	case EventError:
		return l.fail(fmt.Errorf("remote error at stage %s: %s", l.stage, ev.Error))
	case EventIncludedInBlock:
		if l.stage != StageSubmitted {
			return l.fail(fmt.Errorf("unexpected %s at stage %s", ev.Type, l.stage))
		}
		if ev.AttestationID == nil || ev.LeafDigest == nil {
			return l.fail(fmt.Errorf("%s without attestation id or leaf digest", ev.Type))
		}
		l.attestationID = *ev.AttestationID
		l.leafDigest = *ev.LeafDigest
		if ev.BlockHash != nil {
			l.blockHash = *ev.BlockHash
		}
		l.stage = StageIncluded
	case EventFinalized:
		if l.stage != StageIncluded {
			return l.fail(fmt.Errorf("unexpected %s at stage %s", ev.Type, l.stage))
		}
		l.stage = StageFinalized
	case EventAttestationConfirmed:
		if l.stage != StageFinalized {
			return l.fail(fmt.Errorf("unexpected %s at stage %s", ev.Type, l.stage))
		}
		if ev.AttestationID != nil && *ev.AttestationID != l.attestationID {
			return l.fail(fmt.Errorf("confirmed attestation %d, included as %d", *ev.AttestationID, l.attestationID))
		}
		l.stage = StageConfirmed
	}
	return nil
}

func (l *lifecycle) fail(err error) error {
	l.stage = StageFailed
	return err
}
