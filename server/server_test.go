package server_test

// End to end tests running a verifier server against a stub proof service,
// an in-process attestation gateway and a mocked chain node.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/zkleaderboard/verifier/attestation"
	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/ledger/mocks"
	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/server"
	"github.com/zkleaderboard/verifier/storage"
	"github.com/zkleaderboard/verifier/types"
)

var (
	leaderboard = []string{
		"0x00000000000000000000000000000000000000c1",
		"0x00000000000000000000000000000000000000c2",
		"0x00000000000000000000000000000000000000c3",
	}
	leaf = common.HexToHash("0x1eaf")
)

// spawnProofService serves jobs which stay pending for two status fetches.
func spawnProofService(t *testing.T) string {
	t.Helper()
	var (
		mu      sync.Mutex
		fetches = map[string]int{}
		jobs    int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/check_position/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		jobs++
		job := fmt.Sprintf("job-%d", jobs)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(job)
	})
	mux.HandleFunc("/job/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetches[r.URL.Path]++
		n := fetches[r.URL.Path]
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			_, _ = w.Write([]byte(`{"status":"pending","proof":null,"journal":null,"image_id":null,"results":null}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"status":"completed","proof":"0x01","journal":"0x02","image_id":"0x03","results":[`+
			`{"address":"%s","is_top_half":false},{"address":"%s","is_top_half":true},{"address":"%s","is_top_half":true}]}`,
			leaderboard[2], leaderboard[0], leaderboard[1])
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

type attestationGateway struct{}

func (attestationGateway) SubmitAndWatch(ctx context.Context, _ attestation.ProofSubmission) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}
	id := uint64(42)
	digest := leaf
	events := []attestation.Event{
		{Type: attestation.EventIncludedInBlock, AttestationID: &id, LeafDigest: &digest},
		{Type: attestation.EventFinalized},
		{Type: attestation.EventAttestationConfirmed, AttestationID: &id},
	}
	sub := notifier.CreateSubscription()
	go func() {
		for _, ev := range events {
			if err := notifier.Notify(sub.ID, ev); err != nil {
				return
			}
		}
	}()
	return sub, nil
}

func (attestationGateway) ProofOfExistence(id uint64, leaf common.Hash) (*types.ProofDetails, error) {
	return &types.ProofDetails{
		Root:           common.HexToHash("0x0a"),
		Proof:          []common.Hash{common.HexToHash("0x0b")},
		NumberOfLeaves: 2,
		LeafIndex:      1,
		Leaf:           leaf,
	}, nil
}

func spawnAttestationGateway(t *testing.T) attestation.Dialer {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("attest", attestationGateway{}))
	t.Cleanup(srv.Stop)
	return func(ctx context.Context) (*rpc.Client, error) {
		return rpc.DialInProc(srv), nil
	}
}

func testConfig(t *testing.T, proofService string) server.Config {
	cfg := *server.DefaultConfig()
	cfg.VerifierDir = t.TempDir()
	cfg.DbDir = t.TempDir()
	cfg.RawRESTListener = "localhost:0"
	cfg.RateLimit = 0
	cfg.ProofService.URL = proofService
	cfg.Poll.Interval = 10 * time.Millisecond
	cfg.Ledger.SettlementContract = "0x00000000000000000000000000000000000000aa"
	cfg.Ledger.ChainID = 1337
	cfg.Ledger.ReceiptInterval = 10 * time.Millisecond
	cfg.Ledger.ReceiptTimeout = time.Second
	return cfg
}

func spawnVerifier(ctx context.Context, t *testing.T, cfg server.Config, opts ...server.Option) string {
	t.Helper()
	srv, err := server.New(ctx, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, srv.Close()) })

	ctx, cancel := context.WithCancel(ctx)
	var eg errgroup.Group
	eg.Go(func() error { return srv.Start(ctx) })
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, eg.Wait())
	})
	return "http://" + srv.Addr().String()
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestVerifierSettlesBatchOnce(t *testing.T) {
	t.Parallel()
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))

	backend := mocks.NewMockBackend(gomock.NewController(t))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	var sent *gethtypes.Transaction
	backend.EXPECT().PendingNonceAt(gomock.Any(), crypto.PubkeyToAddress(key.PublicKey)).Return(uint64(0), nil)
	backend.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(1), nil)
	backend.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(100000), nil)
	backend.EXPECT().SendTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tx *gethtypes.Transaction) error {
			sent = tx
			return nil
		})
	backend.EXPECT().TransactionReceipt(gomock.Any(), gomock.Any()).Return(
		&gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(5)}, nil)

	cfg := testConfig(t, spawnProofService(t))
	url := spawnVerifier(ctx, t, cfg,
		server.WithLedgerBackend(backend, key),
		server.WithAttestationDialer(spawnAttestationGateway(t)),
	)

	resp, body := postJSON(t, url+"/api/verify", server.VerifyRequest{Addresses: leaderboard})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var verified server.VerifyResponse
	require.NoError(t, json.Unmarshal(body, &verified))
	require.Equal(t, "success", verified.Status)
	require.Equal(t, sent.Hash(), verified.TransactionHash)
	require.Equal(t, uint64(42), verified.Attestation.AttestationID)

	// the batch was settled, a second run must not send another transaction
	resp, body = postJSON(t, url+"/api/verify", server.VerifyRequest{Addresses: leaderboard})
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	runResp, err := http.Get(url + "/api/runs/" + verified.RunID)
	require.NoError(t, err)
	defer runResp.Body.Close()
	require.Equal(t, http.StatusOK, runResp.StatusCode)
	var record storage.Record
	require.NoError(t, json.NewDecoder(runResp.Body).Decode(&record))
	require.Equal(t, "succeeded", record.Outcome)
	require.Equal(t, sent.Hash(), record.TxHash)
	require.Equal(t, uint64(42), record.AttestationID)
}

func TestVerifierReportsTimeout(t *testing.T) {
	t.Parallel()
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := testConfig(t, spawnProofService(t))
	cfg.Poll.MaxAttempts = 2
	url := spawnVerifier(ctx, t, cfg,
		server.WithLedgerBackend(mocks.NewMockBackend(gomock.NewController(t)), key),
		server.WithAttestationDialer(spawnAttestationGateway(t)),
	)

	resp, body := postJSON(t, url+"/api/verify", server.VerifyRequest{Addresses: leaderboard})
	require.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	require.JSONEq(t, `{"error":"Proof generation timed out"}`, string(body))
}

func TestVerifierRequiresSettlementKey(t *testing.T) {
	t.Setenv(ledger.KeyEnvVar, "")
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))

	cfg := testConfig(t, "http://localhost:1")
	_, err := server.New(ctx, cfg,
		server.WithLedgerBackend(mocks.NewMockBackend(gomock.NewController(t)), nil),
	)
	require.ErrorContains(t, err, ledger.KeyEnvVar)
}

func TestVerifierRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "not a url")
	cfg.Ledger.SettlementContract = ""
	_, err := server.New(context.Background(), cfg)
	require.ErrorContains(t, err, "invalid proof service url")
	require.ErrorContains(t, err, "ledger-settlement-contract is required")
}
