package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	xdr "github.com/nullstyle/go-xdr/xdr3"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/orchestrator"
	"github.com/zkleaderboard/verifier/types"
)

var ErrNotFound = leveldb.ErrNotFound

var _ orchestrator.SettlementGuard = (*Store)(nil)

const (
	runPrefix        = "run/"
	settlementPrefix = "settlement/"
)

// Record is the persisted outcome of a finished run.
type Record struct {
	RunID         string                `json:"run_id"`
	Outcome       string                `json:"outcome"`
	Addresses     []string              `json:"addresses"`
	Job           string                `json:"job,omitempty"`
	Journal       hexutil.Bytes         `json:"journal,omitempty"`
	Results       []types.AddressResult `json:"results,omitempty"`
	AttestationID uint64                `json:"attestationId,omitempty"`
	ProofDetails  types.ProofDetails    `json:"proofDetails"`
	TxHash        common.Hash           `json:"transaction_hash"`
	BlockNumber   uint64                `json:"block_number,omitempty"`
	Error         string                `json:"error,omitempty"`
	FinishedAt    int64                 `json:"finished_at"`
}

// SettlementMarker tracks the settlement of a batch.
// A marker without a transaction is a reservation held by a running settlement.
type SettlementMarker struct {
	RunID      string
	TxHash     common.Hash
	Sent       bool
	ReservedAt int64
}

type option func(*Store)

// WithReservationTTL sets the age after which an unsent reservation is
// considered abandoned and may be taken over by another run.
func WithReservationTTL(ttl time.Duration) option {
	return func(s *Store) {
		s.reservationTTL = ttl
	}
}

// Store persists run outcomes and settlement markers in leveldb.
// It implements orchestrator.SettlementGuard.
type Store struct {
	db             *leveldb.DB
	reservationTTL time.Duration
}

func Open(dbPath string, opts ...option) (*Store, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database @ %s: %w", dbPath, err)
	}
	s := &Store{db: db, reservationTTL: time.Hour}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveOutcome(ctx context.Context, out *orchestrator.Outcome) error {
	record := Record{
		RunID:      out.RunID,
		Outcome:    string(out.Kind),
		Addresses:  out.Addresses,
		Job:        string(out.Job),
		Journal:    out.Journal,
		Results:    out.Results,
		FinishedAt: time.Now().Unix(),
	}
	if record.Addresses == nil {
		record.Addresses = []string{}
	}
	if out.Attestation != nil {
		record.AttestationID = out.Attestation.AttestationID
		record.ProofDetails = out.Attestation.ProofDetails
	}
	if out.Receipt != nil {
		record.TxHash = out.Receipt.TxHash
		record.BlockNumber = out.Receipt.BlockNumber
	}
	var ambiguous *types.AmbiguousSettlementError
	if errors.As(out.Err, &ambiguous) {
		record.TxHash = ambiguous.TxHash
	}
	if out.Err != nil {
		record.Error = out.Err.Error()
	}

	serialized, err := serialize(&record)
	if err != nil {
		return fmt.Errorf("failed serializing run %s: %w", out.RunID, err)
	}
	if err := s.db.Put([]byte(runPrefix+out.RunID), serialized, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("storing run %s in DB: %w", out.RunID, err)
	}
	logging.FromContext(ctx).Debug("stored run outcome", zap.String("run_id", out.RunID))
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*Record, error) {
	data, err := s.db.Get([]byte(runPrefix+runID), nil)
	if err != nil {
		return nil, fmt.Errorf("get run %s from DB: %w", runID, err)
	}
	record := &Record{}
	if err := deserialize(data, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Reserve claims the batch for a settlement by the run.
func (s *Store) Reserve(ctx context.Context, batch common.Hash, runID string) error {
	trans, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}

	key := settlementKey(batch)
	current, err := trans.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		// free
	case err != nil:
		trans.Discard()
		return fmt.Errorf("querying settlement of batch %s: %w", batch, err)
	default:
		marker := &SettlementMarker{}
		if err := deserialize(current, marker); err != nil {
			trans.Discard()
			return err
		}
		age := time.Since(time.Unix(marker.ReservedAt, 0))
		if marker.Sent || age < s.reservationTTL {
			trans.Discard()
			return fmt.Errorf("%w: batch %s claimed by run %s", types.ErrAlreadySettled, batch, marker.RunID)
		}
		logging.FromContext(ctx).Warn("taking over abandoned settlement reservation",
			zap.Stringer("batch", batch),
			zap.String("previous_run", marker.RunID),
			zap.Duration("age", age),
		)
	}

	serialized, err := serialize(&SettlementMarker{RunID: runID, ReservedAt: time.Now().Unix()})
	if err != nil {
		trans.Discard()
		return err
	}
	if err := trans.Put(key, serialized, &opt.WriteOptions{Sync: true}); err != nil {
		trans.Discard()
		return fmt.Errorf("reserving settlement of batch %s: %w", batch, err)
	}
	return trans.Commit()
}

// Release drops the reservation of a batch whose settlement definitely failed.
func (s *Store) Release(ctx context.Context, batch common.Hash) error {
	if err := s.db.Delete(settlementKey(batch), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("releasing settlement of batch %s: %w", batch, err)
	}
	return nil
}

// Record marks the batch as settled by the transaction.
func (s *Store) Record(ctx context.Context, batch, tx common.Hash) error {
	trans, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}
	key := settlementKey(batch)
	marker := &SettlementMarker{}
	current, err := trans.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		marker.ReservedAt = time.Now().Unix()
	case err != nil:
		trans.Discard()
		return fmt.Errorf("querying settlement of batch %s: %w", batch, err)
	default:
		if err := deserialize(current, marker); err != nil {
			trans.Discard()
			return err
		}
	}
	marker.TxHash = tx
	marker.Sent = true

	serialized, err := serialize(marker)
	if err != nil {
		trans.Discard()
		return err
	}
	if err := trans.Put(key, serialized, &opt.WriteOptions{Sync: true}); err != nil {
		trans.Discard()
		return fmt.Errorf("recording settlement of batch %s: %w", batch, err)
	}
	return trans.Commit()
}

func (s *Store) Settlement(ctx context.Context, batch common.Hash) (*SettlementMarker, error) {
	data, err := s.db.Get(settlementKey(batch), nil)
	if err != nil {
		return nil, fmt.Errorf("get settlement of batch %s from DB: %w", batch, err)
	}
	marker := &SettlementMarker{}
	if err := deserialize(data, marker); err != nil {
		return nil, err
	}
	return marker, nil
}

func settlementKey(batch common.Hash) []byte {
	return append([]byte(settlementPrefix), batch.Bytes()...)
}

func serialize(v any) ([]byte, error) {
	var dataBuf bytes.Buffer
	if _, err := xdr.Marshal(&dataBuf, v); err != nil {
		return nil, fmt.Errorf("serialization failure: %w", err)
	}
	return dataBuf.Bytes(), nil
}

func deserialize(data []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	return nil
}
