package orchestrator

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/types"
)

var (
	runsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verifier",
		Subsystem: "orchestrator",
		Name:      "runs_total",
		Help:      "Number of finished runs by outcome",
	}, []string{"outcome"})

	stageDurationMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "verifier",
		Subsystem: "orchestrator",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage",
		Buckets:   prometheus.ExponentialBuckets(0.01, 3, 12),
	}, []string{"stage"})
)

//go:generate mockgen -package mocks -destination mocks/pipeline.go . ProofService,Awaiter,Attestor,Settler,SettlementGuard

type ProofService interface {
	Submit(ctx context.Context, addresses types.AddressSet) (types.ProofJob, error)
}

// Awaiter waits for a submitted job to finish.
type Awaiter interface {
	Await(ctx context.Context, job types.ProofJob) (*types.ProofStatus, error)
}

type Attestor interface {
	Verify(ctx context.Context, proof, imageID, publicInputs []byte) (*types.AttestationRecord, error)
}

type Settler interface {
	Settle(ctx context.Context, req ledger.SettlementRequest) (*types.SettlementReceipt, error)
}

// SettlementGuard keeps a batch from being settled twice.
// Reserve fails with types.ErrAlreadySettled when the batch holds a marker.
// A reservation is either released (the settlement definitely failed) or
// recorded with the transaction that was sent for it.
type SettlementGuard interface {
	Reserve(ctx context.Context, batch common.Hash, runID string) error
	Release(ctx context.Context, batch common.Hash) error
	Record(ctx context.Context, batch common.Hash, tx common.Hash) error
}

// TransitionHook observes every stage change of a run.
type TransitionHook func(runID string, from, to Stage)

type Option func(*Pipeline)

func WithSettlementGuard(guard SettlementGuard) Option {
	return func(p *Pipeline) {
		p.guard = guard
	}
}

func WithTransitionHook(hook TransitionHook) Option {
	return func(p *Pipeline) {
		p.hooks = append(p.hooks, hook)
	}
}

// Pipeline holds the long-lived clients shared by all runs.
// Runs never share anything else.
type Pipeline struct {
	proofs   ProofService
	poller   Awaiter
	attestor Attestor
	settler  Settler
	guard    SettlementGuard
	hooks    []TransitionHook
}

func New(proofs ProofService, poller Awaiter, attestor Attestor, settler Settler, opts ...Option) *Pipeline {
	p := &Pipeline{
		proofs:   proofs,
		poller:   poller,
		attestor: attestor,
		settler:  settler,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewRun creates a run for the addresses. The addresses are copied.
func (p *Pipeline) NewRun(addresses types.AddressSet) *Run {
	return &Run{
		id:        uuid.NewString(),
		addresses: append(types.AddressSet(nil), addresses...),
		pipeline:  p,
		stage:     StagePending,
	}
}
