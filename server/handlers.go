package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/orchestrator"
	"github.com/zkleaderboard/verifier/storage"
	"github.com/zkleaderboard/verifier/types"
)

const (
	timedOutMessage     = "Proof generation timed out"
	shuttingDownMessage = "verifier is shutting down"
)

//go:generate mockgen -package mocks -destination mocks/handlers.go . OutcomeStore,AttestationVerifier

type OutcomeStore interface {
	SaveOutcome(ctx context.Context, out *orchestrator.Outcome) error
	GetRun(ctx context.Context, runID string) (*storage.Record, error)
}

type AttestationVerifier interface {
	VerifyAttestation(ctx context.Context, q ledger.AttestationQuery) (bool, error)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type VerifyRequest struct {
	Addresses []string `json:"addresses"`
}

type VerifyResponse struct {
	Status          string                   `json:"status"`
	RunID           string                   `json:"run_id"`
	Journal         hexutil.Bytes            `json:"journal"`
	Attestation     *types.AttestationRecord `json:"zkVerifyAttestation"`
	TransactionHash common.Hash              `json:"transaction_hash"`
	Results         []types.AddressResult    `json:"results"`
}

type AmbiguousSettlementResponse struct {
	Error           string      `json:"error"`
	TransactionHash common.Hash `json:"transaction_hash"`
}

type VerifyContractResponse struct {
	Success  bool   `json:"success"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

type Handler struct {
	pipeline   *orchestrator.Pipeline
	store      OutcomeStore
	verifier   AttestationVerifier
	runTimeout time.Duration

	mu       sync.Mutex
	draining bool
	runs     sync.WaitGroup
}

func NewHandler(pipeline *orchestrator.Pipeline, store OutcomeStore, verifier AttestationVerifier, runTimeout time.Duration) *Handler {
	return &Handler{
		pipeline:   pipeline,
		store:      store,
		verifier:   verifier,
		runTimeout: runTimeout,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Verify executes a run for the posted addresses and blocks until it finishes.
// The run is detached from the client connection so that a disconnect never
// interrupts a settlement, it is bounded by the run timeout instead.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if !h.begin() {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: shuttingDownMessage})
		return
	}
	defer h.runs.Done()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.runTimeout)
	defer cancel()
	logger := logging.FromContext(ctx)

	run := h.pipeline.NewRun(types.AddressSet(req.Addresses))
	c.Header("X-Run-Id", run.ID())
	out := run.Execute(ctx)
	if err := h.store.SaveOutcome(ctx, out); err != nil {
		logger.Error("failed to store run outcome", zap.String("run_id", out.RunID), zap.Error(err))
	}

	status, body := render(out)
	c.JSON(status, body)
}

// begin registers an in-flight run unless the handler is draining.
func (h *Handler) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.runs.Add(1)
	return true
}

// Drain refuses new runs and waits until the in-flight ones stored their outcome.
func (h *Handler) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight runs: %w", ctx.Err())
	}
}

// render maps an outcome to the HTTP status and body of /api/verify.
func render(out *orchestrator.Outcome) (int, any) {
	if out.Succeeded() {
		return http.StatusOK, VerifyResponse{
			Status:          "success",
			RunID:           out.RunID,
			Journal:         out.Journal,
			Attestation:     out.Attestation,
			TransactionHash: out.Receipt.TxHash,
			Results:         out.Results,
		}
	}

	var ambiguous *types.AmbiguousSettlementError
	switch {
	case out.Kind == orchestrator.TimedOut:
		return http.StatusRequestTimeout, ErrorResponse{Error: timedOutMessage}
	case errors.Is(out.Err, types.ErrInvalidRequest):
		return http.StatusBadRequest, ErrorResponse{Error: out.Err.Error()}
	case errors.Is(out.Err, types.ErrAlreadySettled):
		return http.StatusConflict, ErrorResponse{Error: out.Err.Error()}
	case errors.As(out.Err, &ambiguous):
		return http.StatusBadGateway, AmbiguousSettlementResponse{
			Error:           out.Err.Error(),
			TransactionHash: ambiguous.TxHash,
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: out.Err.Error()}
}

func (h *Handler) VerifyContract(c *gin.Context) {
	var q ledger.AttestationQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, VerifyContractResponse{Error: err.Error()})
		return
	}

	verified, err := h.verifier.VerifyAttestation(c.Request.Context(), q)
	if err != nil {
		logging.FromContext(c.Request.Context()).Warn("attestation check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, VerifyContractResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, VerifyContractResponse{Success: true, Verified: verified})
}

func (h *Handler) GetRun(c *gin.Context) {
	record, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, record)
	}
}
