package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-monitor/internal/observability"
	"github.com/spec-kit/sla-monitor/internal/service"
)

// CycleRunner runs one evaluation pass.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (service.Summary, error)
}

// Lease guards a cycle against concurrent runs in other processes.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// DefaultCycleTimeout bounds a single cycle when Options leave it unset.
const DefaultCycleTimeout = 10 * time.Minute

// ErrCycleSkipped is returned by RunOnce when another holder owns the lease.
var ErrCycleSkipped = errors.New("cycle skipped: lease held elsewhere")

// SLAWorker invokes the evaluator on a fixed interval. Cycles never overlap.
type SLAWorker struct {
	runner       CycleRunner
	interval     time.Duration
	cycleTimeout time.Duration
	logger       *zap.Logger
	metrics      *observability.Metrics
	lease        Lease
	clock        func() time.Time

	mu   sync.RWMutex
	last *service.Summary
}

// Options configures an SLAWorker. Lease and Metrics are optional.
// CycleTimeout is independent of Interval: a cycle may run past the interval
// and still commit.
type Options struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Lease        Lease
	Clock        func() time.Time
}

// NewSLAWorker creates a worker around runner.
func NewSLAWorker(runner CycleRunner, opts Options) *SLAWorker {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	cycleTimeout := opts.CycleTimeout
	if cycleTimeout <= 0 {
		cycleTimeout = DefaultCycleTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SLAWorker{
		runner:       runner,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		logger:       logger,
		metrics:      opts.Metrics,
		lease:        opts.Lease,
		clock:        clock,
	}
}

// Run executes the first cycle immediately and then one per interval until
// ctx is cancelled. A cycle that outlasts the interval delays the next one.
// A cycle already in progress when ctx is cancelled runs to completion.
func (w *SLAWorker) Run(ctx context.Context) error {
	w.logger.Info("sla worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("cycle_timeout", w.cycleTimeout))
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla worker stopped")
			return nil
		case <-timer.C:
		}

		started := time.Now()
		_, err := w.RunOnce(ctx)
		if err != nil && !errors.Is(err, ErrCycleSkipped) {
			w.logger.Error("sla cycle failed", zap.Error(err))
		}

		wait := w.interval - time.Since(started)
		if wait <= 0 {
			w.logger.Warn("sla cycle overran interval",
				zap.Duration("elapsed", time.Since(started)),
				zap.Duration("interval", w.interval))
			wait = 0
		}
		timer.Reset(wait)
	}
}

// RunOnce runs a single cycle outside the schedule. Cancelling ctx does not
// interrupt the cycle; only the cycle timeout does. The lease is held for the
// same bound so no other replica can start while this cycle may still commit.
func (w *SLAWorker) RunOnce(ctx context.Context) (service.Summary, error) {
	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cycleTimeout)
	defer cancel()

	if w.lease != nil {
		ok, err := w.lease.Acquire(cycleCtx, w.cycleTimeout)
		switch {
		case err != nil:
			w.logger.Warn("cycle lease unavailable, running unguarded", zap.Error(err))
		case !ok:
			w.logger.Info("cycle lease held elsewhere, skipping")
			w.metrics.RecordCycle(observability.CycleResultSkipped, 0, 0, 0, 0)
			return service.Summary{}, ErrCycleSkipped
		default:
			defer func() {
				releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancelRelease()
				if err := w.lease.Release(releaseCtx); err != nil {
					w.logger.Warn("release cycle lease", zap.Error(err))
				}
			}()
		}
	}

	started := time.Now()
	summary, err := w.runner.RunCycle(cycleCtx, w.clock())
	if err != nil {
		w.metrics.RecordCycle(observability.CycleResultFailed, time.Since(started), 0, 0, 0)
		return summary, err
	}

	w.metrics.RecordCycle(observability.CycleResultCommitted, summary.Duration, summary.Scanned, summary.Breaches, summary.Alerts)
	w.mu.Lock()
	w.last = &summary
	w.mu.Unlock()
	return summary, nil
}

// LastSummary returns the most recent committed cycle, if any.
func (w *SLAWorker) LastSummary() (service.Summary, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return service.Summary{}, false
	}
	return *w.last, true
}
