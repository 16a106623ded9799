package broadcast

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"rinkcast/internal/config"
	"rinkcast/internal/logging"
	"rinkcast/internal/retry"
	"rinkcast/internal/services"
	"rinkcast/internal/station"
)

// Resolution is the outcome of resolving exactly one usable broadcast for a
// window.
type Resolution struct {
	BroadcastID string
	IsNew       bool
	Live        bool
}

// Resolver turns (station, window) into exactly one non-duplicate remote
// broadcast id, in fallback order: reuse the prior id, find an exact title
// match, fuzzy-match recent broadcasts, create a new one.
type Resolver struct {
	svc    Service
	logger *slog.Logger

	pageSize      int
	fuzzyLookback time.Duration
	scheduleGrace time.Duration
	policy        retry.Policy

	now func() time.Time
}

// NewResolver constructs a resolver over the given platform service.
func NewResolver(svc Service, cfg config.Platform, logger *slog.Logger) *Resolver {
	pageSize := cfg.SearchPageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	lookback := time.Duration(cfg.DuplicateLookbackMinutes) * time.Minute
	if lookback <= 0 {
		lookback = 30 * time.Minute
	}
	grace := time.Duration(cfg.ScheduleGraceMinutes) * time.Minute
	if grace <= 0 {
		grace = 2 * time.Minute
	}
	policy := retry.Default()
	policy.IsRetryable = services.IsRetryable
	return &Resolver{
		svc:           svc,
		logger:        logging.NewComponentLogger(logger, "resolver"),
		pageSize:      pageSize,
		fuzzyLookback: lookback,
		scheduleGrace: grace,
		policy:        policy,
		now:           time.Now,
	}
}

// WithClock overrides the resolver's time source.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if now != nil {
		r.now = now
	}
	return r
}

// Resolve returns exactly one usable broadcast id for the window. The prior
// id may come from an earlier occurrence whose window has since been edited;
// reusePrior keeps it only when it still title-matches or is actively live.
func (r *Resolver) Resolve(ctx context.Context, id station.ID, window station.EventWindow, stationCfg config.Station, priorID string) (Resolution, error) {
	logger := logging.WithContext(ctx, r.logger)

	if res, ok, err := r.reusePrior(ctx, id, window, priorID, logger); err != nil {
		return Resolution{}, err
	} else if ok {
		return res, nil
	}

	recent, err := r.listRecent(ctx)
	if err != nil {
		return Resolution{}, err
	}

	if res, ok := r.matchExact(ctx, id, window, recent, logger); ok {
		return res, nil
	}
	if res, ok := r.matchFuzzy(id, window, recent, logger); ok {
		return res, nil
	}
	return r.create(ctx, id, window, stationCfg, logger)
}

// reusePrior validates the broadcast id persisted by an earlier poll. A
// prior broadcast is kept when its title still carries the station tag and
// it either matches the expected title exactly or is actively live. A live
// remote transmission is never torn down over local bookkeeping.
func (r *Resolver) reusePrior(ctx context.Context, id station.ID, window station.EventWindow, priorID string, logger *slog.Logger) (Resolution, bool, error) {
	priorID = strings.TrimSpace(priorID)
	if priorID == "" {
		return Resolution{}, false, nil
	}

	var prior *Broadcast
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var getErr error
		prior, getErr = r.svc.Get(ctx, priorID)
		return getErr
	})
	if err != nil {
		return Resolution{}, false, err
	}
	if prior == nil || prior.Lifecycle.Terminal() {
		logger.Warn("persisted broadcast no longer usable",
			logging.String(logging.FieldBroadcastID, priorID),
		)
		return Resolution{}, false, nil
	}
	if !TitleHasStationTag(prior.Title, id) {
		logger.Warn("persisted broadcast belongs to another station",
			logging.String(logging.FieldBroadcastID, priorID),
			logging.String("title", prior.Title),
		)
		return Resolution{}, false, nil
	}
	if prior.Title == ExpectedTitle(id, window) || prior.Lifecycle == LifecycleLive {
		return Resolution{BroadcastID: prior.ID, Live: prior.Lifecycle == LifecycleLive}, true, nil
	}
	return Resolution{}, false, nil
}

func (r *Resolver) listRecent(ctx context.Context) ([]Broadcast, error) {
	var recent []Broadcast
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var listErr error
		recent, listErr = r.svc.ListRecent(ctx, r.pageSize)
		return listErr
	})
	return recent, err
}

// matchExact finds non-terminal broadcasts whose title equals the expected
// title. Duplicates arise from races between overlapping polls or manual
// retries; the most recently published wins and the rest are deleted.
func (r *Resolver) matchExact(ctx context.Context, id station.ID, window station.EventWindow, recent []Broadcast, logger *slog.Logger) (Resolution, bool) {
	expected := ExpectedTitle(id, window)
	var matches []Broadcast
	for _, b := range recent {
		if !b.Lifecycle.Terminal() && b.Title == expected {
			matches = append(matches, b)
		}
	}
	if len(matches) == 0 {
		return Resolution{}, false
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].PublishedAt.After(matches[j].PublishedAt)
	})
	winner := matches[0]
	for _, dup := range matches[1:] {
		if err := r.svc.Delete(ctx, dup.ID); err != nil {
			logger.Warn("duplicate broadcast cleanup failed",
				logging.String(logging.FieldBroadcastID, dup.ID),
				logging.Error(err),
			)
			continue
		}
		logger.Info("deleted duplicate broadcast",
			logging.String(logging.FieldBroadcastID, dup.ID),
			logging.String("kept", winner.ID),
		)
	}
	return Resolution{BroadcastID: winner.ID, Live: winner.Lifecycle == LifecycleLive}, true
}

// matchFuzzy catches broadcasts created by an earlier code revision with a
// different title format: non-terminal, published within the lookback, and
// carrying both the display name and the station tag.
func (r *Resolver) matchFuzzy(id station.ID, window station.EventWindow, recent []Broadcast, logger *slog.Logger) (Resolution, bool) {
	cutoff := r.now().Add(-r.fuzzyLookback)
	var best *Broadcast
	for i := range recent {
		b := recent[i]
		if b.Lifecycle.Terminal() || b.PublishedAt.Before(cutoff) {
			continue
		}
		if !TitleMatchesFuzzy(b.Title, id, window) {
			continue
		}
		if best == nil || b.PublishedAt.After(best.PublishedAt) {
			best = &recent[i]
		}
	}
	if best == nil {
		return Resolution{}, false
	}
	logger.Info("reusing fuzzy-matched broadcast",
		logging.String(logging.FieldBroadcastID, best.ID),
		logging.String("title", best.Title),
	)
	return Resolution{BroadcastID: best.ID, Live: best.Lifecycle == LifecycleLive}, true
}

// create schedules a new broadcast and binds it to the station's output.
// The scheduled start must be in the future; for an event already underway
// it slips to now plus the grace period.
func (r *Resolver) create(ctx context.Context, id station.ID, window station.EventWindow, stationCfg config.Station, logger *slog.Logger) (Resolution, error) {
	streamID, err := r.streamID(ctx, stationCfg)
	if err != nil {
		return Resolution{}, err
	}

	scheduled := window.Start
	if now := r.now(); !scheduled.After(now) {
		scheduled = now.Add(r.scheduleGrace)
	}
	description := window.Description
	if description == "" {
		description = window.DisplayTitle()
	}

	created, err := r.svc.Create(ctx, NewBroadcast{
		Title:          ExpectedTitle(id, window),
		Description:    description,
		ScheduledStart: scheduled,
	})
	if err != nil {
		return Resolution{}, err
	}

	if err := r.svc.Bind(ctx, created.ID, streamID); err != nil {
		return Resolution{}, err
	}

	logger.Info("created broadcast",
		logging.String(logging.FieldBroadcastID, created.ID),
		logging.String("title", created.Title),
		logging.String("stream_id", streamID),
		logging.Time("scheduled_start", scheduled),
	)
	return Resolution{BroadcastID: created.ID, IsNew: true}, nil
}

func (r *Resolver) streamID(ctx context.Context, stationCfg config.Station) (string, error) {
	if id := strings.TrimSpace(stationCfg.StreamID); id != "" {
		return id, nil
	}
	key := strings.TrimSpace(stationCfg.StreamKey)
	if key == "" {
		return "", services.Wrap(services.ErrConfiguration, "resolver", "stream binding", "station has neither stream_id nor stream_key", nil)
	}
	var streamID string
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var lookupErr error
		streamID, lookupErr = r.svc.LookupStreamID(ctx, key)
		return lookupErr
	})
	return streamID, err
}
