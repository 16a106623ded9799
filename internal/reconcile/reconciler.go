package reconcile

import (
	"context"
	"log/slog"
	"time"

	"rinkcast/internal/broadcast"
	"rinkcast/internal/calendar"
	"rinkcast/internal/capture"
	"rinkcast/internal/config"
	"rinkcast/internal/logging"
	"rinkcast/internal/services"
	"rinkcast/internal/statestore"
	"rinkcast/internal/station"
)

// Result is the outcome of one reconciliation pass.
type Result string

const (
	ResultStarted     Result = "STARTED"
	ResultAlreadyLive Result = "ALREADY_LIVE"
	ResultStopped     Result = "STOPPED"
	ResultIdle        Result = "IDLE"
)

// Resolver turns a station and event window into exactly one usable
// broadcast id.
type Resolver interface {
	Resolve(ctx context.Context, id station.ID, window station.EventWindow, stationCfg config.Station, priorID string) (broadcast.Resolution, error)
}

// Controller drives the local capture process.
type Controller interface {
	IsRunning() (bool, error)
	Start(ctx context.Context, profile, collection string) error
	WaitUntilControlPlaneReady(ctx context.Context, timeout time.Duration) error
	EnsureStreaming(ctx context.Context) error
	StreamActive(ctx context.Context) capture.Tristate
	Stop(ctx context.Context) error
}

// StateStore persists the reconciliation outcome between polls.
type StateStore interface {
	Read(ctx context.Context, id station.ID) (*statestore.Record, error)
	Write(ctx context.Context, rec statestore.Record) error
	Clear(ctx context.Context, id station.ID) error
}

// Reconciler is the per-poll decision procedure: observe the calendar,
// resolve the broadcast, converge the local process, persist the outcome.
// Each pass derives its state fresh; nothing carries over in memory.
type Reconciler struct {
	cfg        *config.Config
	cal        calendar.Service
	resolver   Resolver
	controller Controller
	store      StateStore
	logger     *slog.Logger

	now func() time.Time
}

// New constructs a reconciler over the given collaborators.
func New(cfg *config.Config, cal calendar.Service, resolver Resolver, controller Controller, store StateStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		cfg:        cfg,
		cal:        cal,
		resolver:   resolver,
		controller: controller,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "reconciler"),
		now:        time.Now,
	}
}

// WithClock overrides the reconciler's time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	if now != nil {
		r.now = now
	}
	return r
}

// Tick runs one reconciliation pass for a station. Broadcast resolution
// always completes before any process-start action, and state is persisted
// only after the corresponding action has been confirmed.
func (r *Reconciler) Tick(ctx context.Context, id station.ID) (Result, error) {
	ctx = services.WithStation(ctx, string(id))
	logger := logging.WithContext(ctx, r.logger)

	stationCfg, err := r.cfg.StationConfig(string(id))
	if err != nil {
		return "", err
	}

	window, err := r.cal.CurrentWindow(ctx, stationCfg.CalendarID)
	if err != nil {
		return "", err
	}

	if window == nil {
		return r.noEvent(ctx, id, logger)
	}
	return r.eventActive(ctx, id, *window, stationCfg, logger)
}

// noEvent converges toward "nothing running, nothing persisted".
func (r *Reconciler) noEvent(ctx context.Context, id station.ID, logger *slog.Logger) (Result, error) {
	running, err := r.controller.IsRunning()
	if err != nil {
		return "", err
	}
	if running {
		if err := r.controller.Stop(ctx); err != nil {
			return "", err
		}
		if err := r.store.Clear(ctx, id); err != nil {
			return "", err
		}
		logger.Info("event window closed, capture stopped",
			logging.String(logging.FieldResult, string(ResultStopped)),
		)
		return ResultStopped, nil
	}

	if err := r.store.Clear(ctx, id); err != nil {
		return "", err
	}
	logger.Debug("no event window",
		logging.String(logging.FieldResult, string(ResultIdle)),
	)
	return ResultIdle, nil
}

// eventActive resolves the broadcast for the window and converges the local
// process onto it.
func (r *Reconciler) eventActive(ctx context.Context, id station.ID, window station.EventWindow, stationCfg config.Station, logger *slog.Logger) (Result, error) {
	eventKey := window.Key()
	logger = logger.With(logging.String(logging.FieldEventKey, string(eventKey)))

	// The persisted broadcast id is always offered as a reuse hint, even
	// when the event key changed. The resolver keeps it only when the
	// broadcast still title-matches or is actively live; a mid-event title
	// edit must not abandon a live transmission, while a stale non-live
	// broadcast falls through to re-resolution.
	prior, err := r.store.Read(ctx, id)
	if err != nil {
		return "", err
	}
	priorID := ""
	if prior != nil {
		priorID = prior.BroadcastID
	}

	res, err := r.resolver.Resolve(ctx, id, window, stationCfg, priorID)
	if err != nil {
		return "", err
	}
	logger = logger.With(logging.String(logging.FieldBroadcastID, res.BroadcastID))

	running, err := r.controller.IsRunning()
	if err != nil {
		return "", err
	}

	if !running {
		return r.startFresh(ctx, id, eventKey, res, stationCfg, logger)
	}

	streamActive := r.controller.StreamActive(ctx)
	if streamActive == capture.Unknown {
		// The control plane may be mid-startup or wedged; the remote
		// platform's lifecycle is the secondary signal.
		if res.Live {
			streamActive = capture.Active
		} else {
			streamActive = capture.Inactive
		}
		logger.Warn("control plane unreachable, using remote lifecycle",
			logging.String("stream_active", streamActive.String()),
		)
	}

	if streamActive == capture.Active {
		if err := r.persist(ctx, id, eventKey, res.BroadcastID, r.priorStartedAt(prior, eventKey)); err != nil {
			return "", err
		}
		logger.Info("station already streaming",
			logging.String(logging.FieldResult, string(ResultAlreadyLive)),
		)
		return ResultAlreadyLive, nil
	}

	// Process is up but the stream is not. Relaunching would trip the
	// "already running" prompt; command the stream through the control
	// plane instead.
	if err := r.controller.EnsureStreaming(ctx); err != nil {
		return "", err
	}
	if err := r.persist(ctx, id, eventKey, res.BroadcastID, r.priorStartedAt(prior, eventKey)); err != nil {
		return "", err
	}
	logger.Info("stream restarted on running process",
		logging.String(logging.FieldResult, string(ResultStarted)),
	)
	return ResultStarted, nil
}

// startFresh launches the capture process and brings the stream up. The
// resolver has already produced a destination, so the process never starts
// without somewhere to stream to.
func (r *Reconciler) startFresh(ctx context.Context, id station.ID, eventKey station.EventKey, res broadcast.Resolution, stationCfg config.Station, logger *slog.Logger) (Result, error) {
	if err := r.controller.Start(ctx, stationCfg.CaptureProfile, stationCfg.OutputProfile); err != nil {
		return "", err
	}
	startedAt := r.now().UTC()

	readyBudget := time.Duration(r.cfg.Capture.StartTimeoutSeconds) * time.Second
	if readyBudget <= 0 {
		readyBudget = 45 * time.Second
	}
	if err := r.controller.WaitUntilControlPlaneReady(ctx, readyBudget); err != nil {
		return "", err
	}
	if err := r.controller.EnsureStreaming(ctx); err != nil {
		return "", err
	}

	if err := r.persist(ctx, id, eventKey, res.BroadcastID, &startedAt); err != nil {
		return "", err
	}
	logger.Info("capture started for event window",
		logging.Bool("new_broadcast", res.IsNew),
		logging.String(logging.FieldResult, string(ResultStarted)),
	)
	return ResultStarted, nil
}

func (r *Reconciler) persist(ctx context.Context, id station.ID, eventKey station.EventKey, broadcastID string, startedAt *time.Time) error {
	return r.store.Write(ctx, statestore.Record{
		Station:          id,
		EventKey:         eventKey,
		BroadcastID:      broadcastID,
		ProcessStartedAt: startedAt,
	})
}

// priorStartedAt carries the original process start time forward across
// refreshes of the same occurrence.
func (r *Reconciler) priorStartedAt(prior *statestore.Record, eventKey station.EventKey) *time.Time {
	if prior != nil && prior.EventKey == eventKey {
		return prior.ProcessStartedAt
	}
	return nil
}
