package pollrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"rinkcast/internal/config"
	"rinkcast/internal/lockfile"
	"rinkcast/internal/logging"
	"rinkcast/internal/reconcile"
	"rinkcast/internal/services"
	"rinkcast/internal/station"
)

// TickFunc runs one reconciliation pass for a station.
type TickFunc func(ctx context.Context, id station.ID) (reconcile.Result, error)

// Runner repeats reconciliation passes for one station on a fixed interval.
// A process-wide flock enforces a single run loop per station; the
// per-station marker lock additionally guards each individual pass, so a
// slow pass and the next timer tick never overlap.
type Runner struct {
	cfg    *config.Config
	id     station.ID
	tick   TickFunc
	passes *lockfile.Lock
	logger *slog.Logger

	interval  time.Duration
	newTickID func() string
}

// New constructs a runner for a station.
func New(cfg *config.Config, id station.ID, tick TickFunc, passes *lockfile.Lock, logger *slog.Logger) *Runner {
	interval := time.Duration(cfg.Reconciler.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		cfg:       cfg,
		id:        id,
		tick:      tick,
		passes:    passes,
		logger:    logging.NewComponentLogger(logger, "pollrun"),
		interval:  interval,
		newTickID: uuid.NewString,
	}
}

// WithInterval overrides the poll interval.
func (r *Runner) WithInterval(d time.Duration) *Runner {
	if d > 0 {
		r.interval = d
	}
	return r
}

// Run loops until the context is cancelled or SIGINT/SIGTERM arrives. The
// first pass runs immediately; subsequent passes follow the ticker.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	guard := flock.New(filepath.Join(r.cfg.Paths.StateDir, fmt.Sprintf("rinkcast-%s.flock", r.id)))
	held, err := guard.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run-loop lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another run loop for station %s is already running", r.id)
	}
	defer func() {
		if err := guard.Unlock(); err != nil {
			r.logger.Warn("release run-loop lock", logging.Error(err))
		}
	}()

	r.logger.Info("run loop started",
		logging.String(logging.FieldStation, string(r.id)),
		logging.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("run loop stopping",
				logging.String(logging.FieldStation, string(r.id)),
			)
			return nil
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

// pass executes one tick under the per-station marker lock. A pass that
// cannot acquire the lock is skipped, not queued; the next tick re-observes
// true state.
func (r *Runner) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	tickID := r.newTickID()
	ctx = services.WithTickID(ctx, tickID)
	ctx = services.WithStation(ctx, string(r.id))
	logger := logging.WithContext(ctx, r.logger)

	acquired, err := r.passes.TryAcquire(r.id)
	if err != nil {
		logger.Error("pass lock acquisition failed", logging.Error(err))
		return
	}
	if !acquired {
		logger.Warn("pass skipped, previous pass still holds the lock")
		return
	}
	defer func() {
		if err := r.passes.Release(r.id); err != nil {
			logger.Warn("pass lock release failed", logging.Error(err))
		}
	}()

	start := time.Now()
	result, err := r.tick(ctx, r.id)
	switch {
	case err == nil:
		logger.Info("pass complete",
			logging.String(logging.FieldResult, string(result)),
			logging.Duration("elapsed", time.Since(start)),
		)
	case errors.Is(err, context.Canceled):
		logger.Info("pass cancelled")
	case errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrUnavailable):
		// Transient failures heal across polls; the next tick retries.
		logger.Warn("pass failed, will retry next poll", logging.Error(err))
	default:
		logger.Error("pass failed", logging.Error(err))
	}
}
