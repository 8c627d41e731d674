package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/zkleaderboard/verifier/orchestrator"
	"github.com/zkleaderboard/verifier/storage"
	"github.com/zkleaderboard/verifier/types"
)

func openStore(t *testing.T) *storage.Store {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestSaveAndGetSucceededRun(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	ctx := context.Background()

	out := &orchestrator.Outcome{
		RunID:     "run-1",
		Kind:      orchestrator.Succeeded,
		Addresses: types.AddressSet{"0xa1", "0xa2"},
		Job:       "job-1",
		Journal:   []byte{1, 2, 3},
		Results: []types.AddressResult{
			{Address: "0xa1", IsTopHalf: true},
			{Address: "0xa2", IsTopHalf: false},
		},
		Attestation: &types.AttestationRecord{
			AttestationID: 42,
			ProofDetails: types.ProofDetails{
				Root:           common.HexToHash("0x0a"),
				Proof:          []common.Hash{common.HexToHash("0x0b")},
				NumberOfLeaves: 2,
				LeafIndex:      1,
				Leaf:           common.HexToHash("0x1eaf"),
			},
		},
		Receipt: &types.SettlementReceipt{TxHash: common.HexToHash("0x7e"), BlockNumber: 10, Confirmed: true},
	}
	require.NoError(t, store.SaveOutcome(ctx, out))

	record, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "succeeded", record.Outcome)
	require.Equal(t, []string{"0xa1", "0xa2"}, record.Addresses)
	require.Equal(t, "job-1", record.Job)
	require.Equal(t, []byte{1, 2, 3}, []byte(record.Journal))
	require.Equal(t, out.Results, record.Results)
	require.Equal(t, uint64(42), record.AttestationID)
	require.Equal(t, out.Attestation.ProofDetails, record.ProofDetails)
	require.Equal(t, common.HexToHash("0x7e"), record.TxHash)
	require.Equal(t, uint64(10), record.BlockNumber)
	require.Empty(t, record.Error)
	require.NotZero(t, record.FinishedAt)
}

func TestSaveFailedRun(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	ctx := context.Background()

	out := &orchestrator.Outcome{
		RunID:     "run-2",
		Kind:      orchestrator.SettlementFailed,
		Addresses: types.AddressSet{"0xa1"},
		Job:       "job-2",
		Err:       &types.AmbiguousSettlementError{TxHash: common.HexToHash("0x7e"), Err: errors.New("receipt timeout")},
	}
	require.NoError(t, store.SaveOutcome(ctx, out))

	record, err := store.GetRun(ctx, "run-2")
	require.NoError(t, err)
	require.Equal(t, "settlement_failed", record.Outcome)
	require.Equal(t, common.HexToHash("0x7e"), record.TxHash)
	require.Contains(t, record.Error, "receipt timeout")
}

func TestGetUnknownRun(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSettlementMarkers(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	ctx := context.Background()
	batch := types.AddressSet{"0xa1", "0xa2"}.Digest()
	tx := common.HexToHash("0x7e")

	_, err := store.Settlement(ctx, batch)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Reserve(ctx, batch, "run-1"))
	require.ErrorIs(t, store.Reserve(ctx, batch, "run-2"), types.ErrAlreadySettled)

	// a definitely failed settlement frees the batch
	require.NoError(t, store.Release(ctx, batch))
	require.NoError(t, store.Reserve(ctx, batch, "run-2"))
	require.NoError(t, store.Record(ctx, batch, tx))

	marker, err := store.Settlement(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, "run-2", marker.RunID)
	require.Equal(t, tx, marker.TxHash)
	require.True(t, marker.Sent)

	err = store.Reserve(ctx, batch, "run-3")
	require.ErrorIs(t, err, types.ErrAlreadySettled)
	require.ErrorContains(t, err, "run-2")

	other := types.AddressSet{"0xa1"}.Digest()
	require.NoError(t, store.Reserve(ctx, other, "run-3"))
}

func TestAbandonedReservationIsTakenOver(t *testing.T) {
	t.Parallel()
	store, err := storage.Open(t.TempDir(), storage.WithReservationTTL(-time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	ctx := context.Background()
	batch := types.AddressSet{"0xa1"}.Digest()

	require.NoError(t, store.Reserve(ctx, batch, "run-1"))
	require.NoError(t, store.Reserve(ctx, batch, "run-2"))

	// sent settlements are never taken over
	require.NoError(t, store.Record(ctx, batch, common.HexToHash("0x7e")))
	require.ErrorIs(t, store.Reserve(ctx, batch, "run-3"), types.ErrAlreadySettled)
}

func TestStoreReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	batch := types.AddressSet{"0xa1"}.Digest()

	store, err := storage.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveOutcome(ctx, &orchestrator.Outcome{RunID: "run-1", Kind: orchestrator.TimedOut, Err: types.ErrTimedOut}))
	require.NoError(t, store.Record(ctx, batch, common.HexToHash("0x7e")))
	require.NoError(t, store.Close())

	store, err = storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	record, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "timed_out", record.Outcome)
	require.Equal(t, types.ErrTimedOut.Error(), record.Error)
	require.ErrorIs(t, store.Reserve(ctx, batch, "run-2"), types.ErrAlreadySettled)
}
