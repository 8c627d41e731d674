package proofservice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zkleaderboard/verifier/proofservice"
	"github.com/zkleaderboard/verifier/proofservice/mocks"
	"github.com/zkleaderboard/verifier/types"
)

// Bodies as the proof service writes them.
const (
	pendingBody   = `{"status":"pending","proof":null,"journal":null,"image_id":null,"results":null}`
	completedBody = `{"status":"completed","proof":"0x0a0b","journal":"0x0c","image_id":"0x0d",` +
		`"results":[{"address":"0xa","is_top_half":true},{"address":"0xb","is_top_half":false}]}`
)

func newProofService(t *testing.T) (*httptest.Server, *atomic.Int32) {
	var submits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/check_position/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Addresses []string `json:"addresses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Addresses) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		submits.Add(1)
		_ = json.NewEncoder(w).Encode("job-1")
	})
	mux.HandleFunc("/job/job-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completedBody))
	})
	mux.HandleFunc("/job/job-2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pendingBody))
	})
	mux.HandleFunc("/job/", func(w http.ResponseWriter, r *http.Request) {
		// unknown jobs get an empty 404
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/job/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &submits
}

func TestHTTPClientSubmit(t *testing.T) {
	t.Parallel()
	srv, submits := newProofService(t)
	client, err := proofservice.NewHTTPClient(srv.URL, proofservice.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	job, err := client.Submit(context.Background(), types.AddressSet{"0xa", "0xb"})
	require.NoError(t, err)
	require.Equal(t, types.ProofJob("job-1"), job)
	require.EqualValues(t, 1, submits.Load())

	t.Run("empty address set is rejected locally", func(t *testing.T) {
		_, err := client.Submit(context.Background(), types.AddressSet{})
		require.ErrorIs(t, err, types.ErrInvalidRequest)
		require.EqualValues(t, 1, submits.Load())
	})
}

func TestHTTPClientFetchStatus(t *testing.T) {
	t.Parallel()
	srv, _ := newProofService(t)
	client, err := proofservice.NewHTTPClient(srv.URL)
	require.NoError(t, err)

	status, err := client.FetchStatus(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, status.Completed())
	require.Equal(t, []byte{0x0a, 0x0b}, []byte(status.Proof))
	require.Len(t, status.Results, 2)

	t.Run("idempotent after completion", func(t *testing.T) {
		again, err := client.FetchStatus(context.Background(), "job-1")
		require.NoError(t, err)
		require.Equal(t, status.Proof, again.Proof)
		require.Equal(t, status.Journal, again.Journal)
		require.Equal(t, status.Results, again.Results)
	})
	t.Run("pending job", func(t *testing.T) {
		pending, err := client.FetchStatus(context.Background(), "job-2")
		require.NoError(t, err)
		require.Equal(t, types.ProofPending, pending.Status)
		require.False(t, pending.Completed())
		require.False(t, pending.Failed())
		require.Nil(t, pending.Proof)
		require.Nil(t, pending.Results)
	})
	t.Run("unknown job", func(t *testing.T) {
		_, err := client.FetchStatus(context.Background(), "missing")
		require.ErrorIs(t, err, types.ErrJobNotFound)
	})
	t.Run("remote failure", func(t *testing.T) {
		_, err := client.FetchStatus(context.Background(), "broken")
		require.ErrorIs(t, err, types.ErrServiceUnavailable)
	})
}

func TestHTTPClientUnreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := proofservice.NewHTTPClient(url)
	require.NoError(t, err)
	_, err = client.Submit(context.Background(), types.AddressSet{"0xa"})
	require.ErrorIs(t, err, types.ErrServiceUnavailable)
	_, err = client.FetchStatus(context.Background(), "job-1")
	require.ErrorIs(t, err, types.ErrServiceUnavailable)
}

func TestCachingClient(t *testing.T) {
	t.Parallel()
	t.Run("caches completed statuses", func(t *testing.T) {
		t.Parallel()
		client := mocks.NewMockClient(gomock.NewController(t))
		client.EXPECT().FetchStatus(gomock.Any(), types.ProofJob("job")).Return(completed(), nil)

		caching, err := proofservice.NewCaching(10, client)
		require.NoError(t, err)

		first, err := caching.FetchStatus(context.Background(), "job")
		require.NoError(t, err)
		second, err := caching.FetchStatus(context.Background(), "job")
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
	t.Run("doesn't cache pending statuses", func(t *testing.T) {
		t.Parallel()
		client := mocks.NewMockClient(gomock.NewController(t))
		client.EXPECT().FetchStatus(gomock.Any(), types.ProofJob("job")).Times(2).Return(pending, nil)

		caching, err := proofservice.NewCaching(10, client)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			_, err := caching.FetchStatus(context.Background(), "job")
			require.NoError(t, err)
		}
	})
	t.Run("doesn't cache errors", func(t *testing.T) {
		t.Parallel()
		client := mocks.NewMockClient(gomock.NewController(t))
		gomock.InOrder(
			client.EXPECT().FetchStatus(gomock.Any(), types.ProofJob("job")).Return(nil, types.ErrServiceUnavailable),
			client.EXPECT().FetchStatus(gomock.Any(), types.ProofJob("job")).Return(completed(), nil),
		)

		caching, err := proofservice.NewCaching(10, client)
		require.NoError(t, err)
		_, err = caching.FetchStatus(context.Background(), "job")
		require.ErrorIs(t, err, types.ErrServiceUnavailable)
		status, err := caching.FetchStatus(context.Background(), "job")
		require.NoError(t, err)
		require.True(t, status.Completed())
		// should hit cache
		status, err = caching.FetchStatus(context.Background(), "job")
		require.NoError(t, err)
		require.True(t, status.Completed())
	})
	t.Run("passes submit through", func(t *testing.T) {
		t.Parallel()
		client := mocks.NewMockClient(gomock.NewController(t))
		client.EXPECT().Submit(gomock.Any(), types.AddressSet{"0xa"}).Return(types.ProofJob("job"), nil)

		caching, err := proofservice.NewCaching(10, client)
		require.NoError(t, err)
		job, err := caching.Submit(context.Background(), types.AddressSet{"0xa"})
		require.NoError(t, err)
		require.Equal(t, types.ProofJob("job"), job)
	})
}
