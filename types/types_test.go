package types_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/zkleaderboard/verifier/types"
)

func TestAddressSetValidate(t *testing.T) {
	t.Parallel()
	require.ErrorIs(t, types.AddressSet{}.Validate(), types.ErrInvalidRequest)
	require.ErrorIs(t, types.AddressSet{"0xabc", " "}.Validate(), types.ErrInvalidRequest)
	require.ErrorIs(t, types.AddressSet{"0xABC", "0xabc"}.Validate(), types.ErrInvalidRequest)
	require.NoError(t, types.AddressSet{"0xabc", "0xdef"}.Validate())
}

func TestAddressSetDigest(t *testing.T) {
	t.Parallel()
	a := types.AddressSet{"0xAbC", "0xdef"}
	require.Equal(t, a.Digest(), types.AddressSet{"0xabc", " 0xDEF"}.Digest())
	require.NotEqual(t, a.Digest(), types.AddressSet{"0xdef", "0xabc"}.Digest())
	require.NotEqual(t, common.Hash{}, a.Digest())
}

func TestWinnersFollowAddressOrder(t *testing.T) {
	t.Parallel()
	addresses := types.AddressSet{"0xa", "0xb", "0xc"}
	status := types.ProofStatus{
		Status: types.ProofCompleted,
		Results: []types.AddressResult{
			{Address: "0xC", IsTopHalf: true},
			{Address: "0xa", IsTopHalf: false},
			{Address: "0xb", IsTopHalf: true},
		},
	}
	winners, err := status.Winners(addresses)
	require.NoError(t, err)
	require.Equal(t, []bool{false, true, true}, winners)

	t.Run("missing result", func(t *testing.T) {
		short := status
		short.Results = status.Results[:2]
		_, err := short.Winners(addresses)
		require.Error(t, err)
	})
	t.Run("unknown address", func(t *testing.T) {
		other := status
		other.Results = []types.AddressResult{{Address: "0xa"}, {Address: "0xb"}, {Address: "0xd"}}
		_, err := other.Winners(addresses)
		require.Error(t, err)
	})
	t.Run("duplicate result", func(t *testing.T) {
		dup := status
		dup.Results = []types.AddressResult{{Address: "0xa"}, {Address: "0xa"}, {Address: "0xb"}}
		_, err := dup.Winners(addresses)
		require.Error(t, err)
	})
}

func TestProofDetailsValidate(t *testing.T) {
	t.Parallel()
	path := func(n int) []common.Hash { return make([]common.Hash, n) }

	tests := []struct {
		name    string
		details types.ProofDetails
		valid   bool
	}{
		{"index 1 of 4", types.ProofDetails{Proof: path(2), NumberOfLeaves: 4, LeafIndex: 1}, true},
		{"promoted leaf", types.ProofDetails{Proof: path(1), NumberOfLeaves: 3, LeafIndex: 2}, true},
		{"single leaf", types.ProofDetails{NumberOfLeaves: 1}, true},
		{"index out of range", types.ProofDetails{Proof: path(2), NumberOfLeaves: 4, LeafIndex: 4}, false},
		{"path too long", types.ProofDetails{Proof: path(3), NumberOfLeaves: 4, LeafIndex: 0}, false},
		{"empty path", types.ProofDetails{NumberOfLeaves: 2}, false},
		{"no leaves", types.ProofDetails{}, false},
		{"single leaf with path", types.ProofDetails{Proof: path(1), NumberOfLeaves: 1}, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := tc.details.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestProofStatusJSON(t *testing.T) {
	t.Parallel()
	raw := `{"status":"completed","proof":"0x0102","journal":"0xff","image_id":"0xaa",` +
		`"results":[{"address":"0xa","is_top_half":true}]}`
	var status types.ProofStatus
	require.NoError(t, json.Unmarshal([]byte(raw), &status))
	require.True(t, status.Completed())
	require.Equal(t, []byte{1, 2}, []byte(status.Proof))
	require.Equal(t, []byte{0xff}, []byte(status.Journal))
	require.Equal(t, []types.AddressResult{{Address: "0xa", IsTopHalf: true}}, status.Results)
}

func TestProofStatusPendingJSON(t *testing.T) {
	t.Parallel()
	raw := `{"status":"pending","proof":null,"journal":null,"image_id":null,"results":null}`
	var status types.ProofStatus
	require.NoError(t, json.Unmarshal([]byte(raw), &status))
	require.Equal(t, types.ProofPending, status.Status)
	require.False(t, status.Completed())
	require.Nil(t, status.Proof)
	require.Nil(t, status.Journal)
	require.Nil(t, status.ImageID)
	require.Nil(t, status.Results)

	require.Error(t, json.Unmarshal([]byte(`{"status":"completed","proof":"0xzz"}`), &status))
}

func TestAmbiguousSettlementError(t *testing.T) {
	t.Parallel()
	err := &types.AmbiguousSettlementError{TxHash: common.HexToHash("0x01"), Err: types.ErrTimedOut}
	require.ErrorIs(t, err, types.ErrSettlementAmbiguous)
	require.ErrorIs(t, err, types.ErrSettlementFailed)
	require.ErrorIs(t, err, types.ErrTimedOut)
	require.Contains(t, err.Error(), common.HexToHash("0x01").Hex())
}
