package main

import (
	"log/slog"
	"path/filepath"
	"time"

	"rinkcast/internal/broadcast"
	"rinkcast/internal/calendar"
	"rinkcast/internal/capture"
	"rinkcast/internal/config"
	"rinkcast/internal/lockfile"
	"rinkcast/internal/logging"
	"rinkcast/internal/reconcile"
	"rinkcast/internal/statestore"
	"rinkcast/internal/station"
)

// runtimeDeps bundles the collaborators a reconciliation pass needs. Both
// the one-shot tick command and the run loop build the same set.
type runtimeDeps struct {
	logger     *slog.Logger
	store      *statestore.Store
	reconciler *reconcile.Reconciler
	passLocks  *lockfile.Lock
}

func buildRuntime(cfg *config.Config) (*runtimeDeps, error) {
	logPath := filepath.Join(cfg.Paths.LogDir, "rinkcast.log")
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return nil, err
	}

	store, err := statestore.Open(cfg)
	if err != nil {
		return nil, err
	}

	cal := calendar.NewClient(cfg.Calendar)
	platform := broadcast.NewClient(cfg.Platform)
	resolver := broadcast.NewResolver(platform, cfg.Platform, logger)
	controlPlane := capture.NewControlClient(cfg.ControlPlane)
	controller := capture.NewController(cfg.Capture, controlPlane, logger)

	staleAfter := time.Duration(cfg.Reconciler.LockStaleMinutes) * time.Minute
	passLocks := lockfile.New(cfg.Paths.StateDir, staleAfter, logger)

	return &runtimeDeps{
		logger:     logger,
		store:      store,
		reconciler: reconcile.New(cfg, cal, resolver, controller, store, logger),
		passLocks:  passLocks,
	}, nil
}

func (d *runtimeDeps) Close() {
	if d.store != nil {
		_ = d.store.Close()
	}
}

func parseStationFlag(value string) (station.ID, error) {
	return station.Parse(value)
}
