package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zkleaderboard/verifier/cmd/httpcli/client"
	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/server"
)

func newClient(t *testing.T, handler http.HandlerFunc) *client.HTTPClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cl, err := client.NewHTTPClient(srv.URL, zaptest.NewLogger(t))
	require.NoError(t, err)
	return cl
}

func TestVerify(t *testing.T) {
	t.Parallel()
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/verify", r.URL.Path)
		var req server.VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"0xa", "0xb"}, req.Addresses)
		_ = json.NewEncoder(w).Encode(server.VerifyResponse{Status: "success", RunID: "run-1"})
	})

	resp, err := cl.Verify(context.Background(), []string{"0xa", "0xb"})
	require.NoError(t, err)
	require.Equal(t, "run-1", resp.RunID)
}

func TestVerifyErrorStatuses(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		status int
		err    error
	}{
		{http.StatusBadRequest, client.ErrInvalidRequest},
		{http.StatusRequestTimeout, client.ErrTimedOut},
		{http.StatusConflict, client.ErrConflict},
		{http.StatusBadGateway, client.ErrAmbiguous},
	} {
		tc := tc
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})

			_, err := cl.Verify(context.Background(), []string{"0xa"})
			require.ErrorIs(t, err, tc.err)
			var statusErr *client.StatusError
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, tc.status, statusErr.Code)
			require.EqualValues(t, 1, calls.Load(), "runs are never resent")
		})
	}
}

func TestVerifyInternalErrorIsNotResent(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := cl.Verify(context.Background(), []string{"0xa"})
	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.Code)
	require.EqualValues(t, 1, calls.Load())
}

func TestVerifyContract(t *testing.T) {
	t.Parallel()
	query := ledger.AttestationQuery{AttestationID: 3, Leaf: common.HexToHash("0x1eaf"), LeafCount: 1}
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/verify_contract", r.URL.Path)
		var got ledger.AttestationQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, query.Leaf, got.Leaf)
		_ = json.NewEncoder(w).Encode(server.VerifyContractResponse{Success: true, Verified: true})
	})

	verified, err := cl.VerifyContract(context.Background(), query)
	require.NoError(t, err)
	require.True(t, verified)
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs/missing", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := cl.Run(context.Background(), "missing")
	require.ErrorIs(t, err, client.ErrNotFound)
}
