package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/types"
)

// Run is a single execution of the pipeline for one address set.
// It owns its proof job and attestation. A Run executes at most once.
type Run struct {
	id        string
	addresses types.AddressSet
	pipeline  *Pipeline

	once    sync.Once
	outcome *Outcome

	mu           sync.Mutex
	stage        Stage
	stageStarted time.Time
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// Execute drives the run to a terminal stage and returns its outcome.
// Later calls return the same outcome without contacting any service.
func (r *Run) Execute(ctx context.Context) *Outcome {
	r.once.Do(func() {
		logger := logging.FromContext(ctx).Named("run").With(zap.String("run_id", r.id))
		r.outcome = r.execute(logging.NewContext(ctx, logger))
		runsMetric.WithLabelValues(string(r.outcome.Kind)).Inc()
		if r.outcome.Succeeded() {
			logger.Info("run succeeded", zap.Object("outcome", r.outcome))
		} else {
			logger.Warn("run failed", zap.Object("outcome", r.outcome))
		}
	})
	return r.outcome
}

func (r *Run) execute(ctx context.Context) *Outcome {
	p := r.pipeline
	out := &Outcome{RunID: r.id, Addresses: r.addresses}
	logger := logging.FromContext(ctx)
	logger.Info("starting run", zap.Array("addresses", r.addresses))

	if err := r.enter(ctx, StageSubmitting); err != nil {
		return r.fail(ctx, out, err)
	}
	if err := r.addresses.Validate(); err != nil {
		return r.fail(ctx, out, err)
	}
	job, err := p.proofs.Submit(ctx, r.addresses)
	if err != nil {
		return r.fail(ctx, out, fmt.Errorf("submitting proof job: %w", err))
	}
	out.Job = job
	logger.Info("proof job submitted", zap.String("job", string(job)))

	if err := r.enter(ctx, StagePolling); err != nil {
		return r.fail(ctx, out, err)
	}
	status, err := p.poller.Await(ctx, job)
	if err != nil {
		return r.fail(ctx, out, fmt.Errorf("awaiting proof job %s: %w", job, err))
	}
	winners, err := status.Winners(r.addresses)
	if err != nil {
		return r.failAs(ctx, out, ProofFailed, fmt.Errorf("%w: %v", types.ErrProofFailed, err))
	}

	if err := r.enter(ctx, StageAttesting); err != nil {
		return r.fail(ctx, out, err)
	}
	record, err := p.attestor.Verify(ctx, status.Proof, status.ImageID, status.Journal)
	if err != nil {
		return r.fail(ctx, out, err)
	}

	if err := r.enter(ctx, StageSettling); err != nil {
		return r.fail(ctx, out, err)
	}
	receipt, err := r.settle(ctx, record, winners)
	if err != nil {
		return r.fail(ctx, out, err)
	}

	out.Kind = Succeeded
	out.Journal = status.Journal
	out.Results = status.Results
	out.Attestation = record
	out.Receipt = receipt
	r.transition(ctx, Stage(Succeeded))
	return out
}

func (r *Run) settle(ctx context.Context, record *types.AttestationRecord, winners []bool) (*types.SettlementReceipt, error) {
	p := r.pipeline
	if p.guard == nil {
		return p.settler.Settle(ctx, ledger.NewSettlementRequest(record, winners))
	}

	logger := logging.FromContext(ctx)
	batch := r.addresses.Digest()
	if err := p.guard.Reserve(ctx, batch, r.id); err != nil {
		return nil, fmt.Errorf("%w: batch %s: %w", types.ErrSettlementFailed, batch, err)
	}
	receipt, err := p.settler.Settle(ctx, ledger.NewSettlementRequest(record, winners))
	var ambiguous *types.AmbiguousSettlementError
	switch {
	case err == nil:
		if err := p.guard.Record(ctx, batch, receipt.TxHash); err != nil {
			logger.Error("failed to record settlement", zap.Stringer("batch", batch), zap.Error(err))
		}
	case errors.As(err, &ambiguous):
		if err := p.guard.Record(ctx, batch, ambiguous.TxHash); err != nil {
			logger.Error("failed to record settlement", zap.Stringer("batch", batch), zap.Error(err))
		}
	default:
		if err := p.guard.Release(ctx, batch); err != nil {
			logger.Error("failed to release settlement reservation", zap.Stringer("batch", batch), zap.Error(err))
		}
	}
	return receipt, err
}

// enter moves the run to the next stage and aborts it there if ctx is done.
func (r *Run) enter(ctx context.Context, next Stage) error {
	r.transition(ctx, next)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted before %s: %w", next, err)
	}
	return nil
}

// fail ends the run with the failure kind of its current stage.
func (r *Run) fail(ctx context.Context, out *Outcome, err error) *Outcome {
	return r.failAs(ctx, out, r.classify(err), err)
}

func (r *Run) failAs(ctx context.Context, out *Outcome, kind Kind, err error) *Outcome {
	out.Kind = kind
	out.Err = err
	r.transition(ctx, Stage(kind))
	return out
}

func (r *Run) classify(err error) Kind {
	stage := r.Stage()
	if stage == StagePolling {
		if errors.Is(err, types.ErrTimedOut) ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return TimedOut
		}
		return ProofFailed
	}
	return stage.failure()
}

func (r *Run) transition(ctx context.Context, to Stage) {
	r.mu.Lock()
	from := r.stage
	started := r.stageStarted
	r.stage = to
	r.stageStarted = time.Now()
	r.mu.Unlock()

	if from != StagePending && !from.Terminal() {
		stageDurationMetric.WithLabelValues(string(from)).Observe(time.Since(started).Seconds())
	}
	logging.FromContext(ctx).Debug("run transition", zap.Stringer("from", from), zap.Stringer("to", to))
	for _, hook := range r.pipeline.hooks {
		hook(r.id, from, to)
	}
}
