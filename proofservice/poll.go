package proofservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/types"
)

var pollAttemptsMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "verifier",
	Subsystem: "poll",
	Name:      "attempts",
	Help:      "Number of status fetches needed to resolve a proof job",
	Buckets:   prometheus.LinearBuckets(1, 3, 12),
}, []string{"result"})

// PollConfig is the bounded wait budget of the poll loop.
//
//nolint:lll
type PollConfig struct {
	MaxAttempts       uint          `long:"poll-max-attempts"        description:"Number of status fetches before giving up on a proof job"`
	Interval          time.Duration `long:"poll-interval"            description:"Wait between status fetches"`
	BackoffMultiplier float64       `long:"poll-backoff-multiplier"  description:"Multiplier applied to the wait after every fetch (1 keeps it constant)"`
	MaxInterval       time.Duration `long:"poll-max-interval"        description:"Upper bound of the wait when backoff is enabled"`
}

// DefaultPollConfig gives a 30 x 2s budget, a one minute ceiling.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxAttempts:       30,
		Interval:          2 * time.Second,
		BackoffMultiplier: 1,
		MaxInterval:       30 * time.Second,
	}
}

// implement zap.ObjectMarshaler interface.
func (c PollConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint("max-attempts", c.MaxAttempts)
	enc.AddDuration("interval", c.Interval)
	enc.AddFloat64("backoff-multiplier", c.BackoffMultiplier)
	enc.AddDuration("max-interval", c.MaxInterval)
	return nil
}

type StatusFetcher interface {
	FetchStatus(ctx context.Context, job types.ProofJob) (*types.ProofStatus, error)
}

// Poller turns an asynchronous proof job into a bounded synchronous wait.
type Poller struct {
	fetcher StatusFetcher
	cfg     PollConfig
}

func NewPoller(fetcher StatusFetcher, cfg PollConfig) *Poller {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	return &Poller{
		fetcher: fetcher,
		cfg:     cfg,
	}
}

// Await fetches the job status until it completes, fails or the attempts
// budget runs out. A completed status is returned as soon as it is observed.
// A failed status returns types.ErrProofFailed without waiting out the budget.
// Exhausting the budget returns types.ErrTimedOut.
// Transient fetch errors consume an attempt and are retried.
func (p *Poller) Await(ctx context.Context, job types.ProofJob) (*types.ProofStatus, error) {
	logger := logging.FromContext(ctx).Named("poll").With(zap.String("job", string(job)))
	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()
	delay := p.cfg.Interval

	var lastErr error
	for attempt := uint(1); attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("polling job %s interrupted: %w", job, err)
		}

		status, err := p.fetcher.FetchStatus(ctx, job)
		switch {
		case err == nil && status.Completed():
			logger.Info("proof job completed", zap.Uint("attempt", attempt))
			pollAttemptsMetric.WithLabelValues("completed").Observe(float64(attempt))
			return status, nil
		case err == nil && status.Failed():
			logger.Info("proof job failed", zap.Uint("attempt", attempt))
			pollAttemptsMetric.WithLabelValues("failed").Observe(float64(attempt))
			return nil, fmt.Errorf("%w: job %s reported failure", types.ErrProofFailed, job)
		case errors.Is(err, types.ErrJobNotFound), errors.Is(err, types.ErrInvalidRequest):
			pollAttemptsMetric.WithLabelValues("failed").Observe(float64(attempt))
			return nil, fmt.Errorf("%w: %w", types.ErrProofFailed, err)
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("polling job %s interrupted: %w", job, err)
			}
			logger.Warn("failed to fetch job status", zap.Uint("attempt", attempt), zap.Error(err))
			lastErr = err
		default:
			logger.Debug("proof job pending", zap.Uint("attempt", attempt))
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		timer.Reset(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			logger.Debug("polling interrupted", zap.Error(ctx.Err()))
			return nil, fmt.Errorf("polling job %s interrupted: %w", job, ctx.Err())
		}
		delay = p.nextDelay(delay)
	}

	pollAttemptsMetric.WithLabelValues("timed_out").Observe(float64(p.cfg.MaxAttempts))
	if lastErr != nil {
		return nil, fmt.Errorf("%w: job %s after %d attempts (last error: %v)", types.ErrTimedOut, job, p.cfg.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w: job %s after %d attempts", types.ErrTimedOut, job, p.cfg.MaxAttempts)
}

func (p *Poller) nextDelay(delay time.Duration) time.Duration {
	if p.cfg.BackoffMultiplier <= 1 {
		return delay
	}
	delay = time.Duration(float64(delay) * p.cfg.BackoffMultiplier)
	if p.cfg.MaxInterval > 0 && delay > p.cfg.MaxInterval {
		delay = p.cfg.MaxInterval
	}
	return delay
}
