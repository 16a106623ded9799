package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"rinkcast/internal/broadcast"
	"rinkcast/internal/capture"
	"rinkcast/internal/config"
	"rinkcast/internal/logging"
	"rinkcast/internal/services"
	"rinkcast/internal/statestore"
	"rinkcast/internal/station"
)

type fakeCalendar struct {
	window *station.EventWindow
	err    error
}

func (f *fakeCalendar) CurrentWindow(ctx context.Context, calendarID string) (*station.EventWindow, error) {
	return f.window, f.err
}

type fakeResolver struct {
	res      broadcast.Resolution
	err      error
	calls    int
	priorIDs []string
}

func (f *fakeResolver) Resolve(ctx context.Context, id station.ID, window station.EventWindow, stationCfg config.Station, priorID string) (broadcast.Resolution, error) {
	f.calls++
	f.priorIDs = append(f.priorIDs, priorID)
	return f.res, f.err
}

type fakeController struct {
	running      bool
	streamActive capture.Tristate

	startCalls  int
	stopCalls   int
	ensureCalls int
	readyCalls  int

	startErr  error
	ensureErr error

	startedProfile    string
	startedCollection string
}

func (f *fakeController) IsRunning() (bool, error) { return f.running, nil }

func (f *fakeController) Start(ctx context.Context, profile, collection string) error {
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	f.startedProfile = profile
	f.startedCollection = collection
	return nil
}

func (f *fakeController) WaitUntilControlPlaneReady(ctx context.Context, timeout time.Duration) error {
	f.readyCalls++
	return nil
}

func (f *fakeController) EnsureStreaming(ctx context.Context) error {
	f.ensureCalls++
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.streamActive = capture.Active
	return nil
}

func (f *fakeController) StreamActive(ctx context.Context) capture.Tristate {
	return f.streamActive
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.stopCalls++
	f.running = false
	return nil
}

type memStore struct {
	records map[station.ID]*statestore.Record
	writes  int
	clears  int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[station.ID]*statestore.Record)}
}

func (m *memStore) Read(ctx context.Context, id station.ID) (*statestore.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) Write(ctx context.Context, rec statestore.Record) error {
	m.writes++
	rec.UpdatedAt = time.Now()
	m.records[rec.Station] = &rec
	return nil
}

func (m *memStore) Clear(ctx context.Context, id station.ID) error {
	m.clears++
	delete(m.records, id)
	return nil
}

func testWindow() station.EventWindow {
	return station.EventWindow{
		Start: time.Date(2025, 2, 1, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 2, 1, 20, 0, 0, 0, time.UTC),
		Title: "Bonspiel Final",
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Stations = map[string]config.Station{
		"A": {
			CalendarID:     "cal-a",
			StreamID:       "str-000a",
			CaptureProfile: "curling-1080p",
			OutputProfile:  "station-a",
		},
	}
	return &cfg
}

type fixture struct {
	cal        *fakeCalendar
	resolver   *fakeResolver
	controller *fakeController
	store      *memStore
	reconciler *Reconciler
}

func newFixture(window *station.EventWindow) *fixture {
	f := &fixture{
		cal:        &fakeCalendar{window: window},
		resolver:   &fakeResolver{res: broadcast.Resolution{BroadcastID: "b-1", IsNew: true}},
		controller: &fakeController{streamActive: capture.Unknown},
		store:      newMemStore(),
	}
	f.reconciler = New(testConfig(), f.cal, f.resolver, f.controller, f.store, logging.NewNop()).
		WithClock(func() time.Time { return time.Date(2025, 2, 1, 19, 0, 0, 0, time.UTC) })
	return f
}

func TestTickNoEventNoProcessIsIdle(t *testing.T) {
	f := newFixture(nil)

	result, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result != ResultIdle {
		t.Errorf("result = %q, want IDLE", result)
	}
	if f.controller.stopCalls != 0 {
		t.Errorf("stopCalls = %d, want 0", f.controller.stopCalls)
	}
	if f.store.clears != 1 {
		t.Errorf("clears = %d, want idempotent clear", f.store.clears)
	}
}

func TestTickNoEventStopsRunningProcess(t *testing.T) {
	f := newFixture(nil)
	f.controller.running = true
	f.store.records[station.SheetA] = &statestore.Record{
		Station:     station.SheetA,
		EventKey:    station.EventKey("stale"),
		BroadcastID: "b-old",
	}

	result, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result != ResultStopped {
		t.Errorf("result = %q, want STOPPED", result)
	}
	if f.controller.stopCalls != 1 {
		t.Errorf("stopCalls = %d, want 1", f.controller.stopCalls)
	}
	if _, ok := f.store.records[station.SheetA]; ok {
		t.Error("state not cleared after stop")
	}
	if f.resolver.calls != 0 {
		t.Errorf("resolver called %d times with no window", f.resolver.calls)
	}
}

func TestTickFreshEventStartsProcess(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)

	result, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result != ResultStarted {
		t.Errorf("result = %q, want STARTED", result)
	}
	if f.controller.startCalls != 1 || f.controller.readyCalls != 1 || f.controller.ensureCalls != 1 {
		t.Errorf("calls = start:%d ready:%d ensure:%d, want 1 each",
			f.controller.startCalls, f.controller.readyCalls, f.controller.ensureCalls)
	}
	if f.controller.startedProfile != "curling-1080p" || f.controller.startedCollection != "station-a" {
		t.Errorf("started with %q/%q", f.controller.startedProfile, f.controller.startedCollection)
	}

	rec := f.store.records[station.SheetA]
	if rec == nil {
		t.Fatal("no state persisted")
	}
	if rec.EventKey != window.Key() || rec.BroadcastID != "b-1" {
		t.Errorf("record = %+v", rec)
	}
	if rec.ProcessStartedAt == nil {
		t.Error("ProcessStartedAt not persisted on fresh start")
	}
}

func TestTickResolvesBroadcastBeforeStarting(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)
	f.resolver.err = services.Wrap(services.ErrTransient, "resolver", "list", "", nil)

	_, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err == nil {
		t.Fatal("Tick succeeded despite resolution failure")
	}
	if f.controller.startCalls != 0 {
		t.Errorf("startCalls = %d, process must never start without a destination", f.controller.startCalls)
	}
	if f.store.writes != 0 {
		t.Errorf("writes = %d, nothing may persist on failure", f.store.writes)
	}
}

func TestTickAlreadyLiveRefreshesState(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)
	f.controller.running = true
	f.controller.streamActive = capture.Active
	f.resolver.res = broadcast.Resolution{BroadcastID: "b-1", Live: true}

	startedAt := time.Date(2025, 2, 1, 18, 5, 0, 0, time.UTC)
	f.store.records[station.SheetA] = &statestore.Record{
		Station:          station.SheetA,
		EventKey:         window.Key(),
		BroadcastID:      "b-1",
		ProcessStartedAt: &startedAt,
	}

	result, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result != ResultAlreadyLive {
		t.Errorf("result = %q, want ALREADY_LIVE", result)
	}
	if f.controller.startCalls != 0 || f.controller.ensureCalls != 0 {
		t.Errorf("calls = start:%d ensure:%d, want none", f.controller.startCalls, f.controller.ensureCalls)
	}
	if got := f.resolver.priorIDs[0]; got != "b-1" {
		t.Errorf("prior hint = %q, want persisted id", got)
	}

	rec := f.store.records[station.SheetA]
	if rec.ProcessStartedAt == nil || !rec.ProcessStartedAt.Equal(startedAt) {
		t.Errorf("ProcessStartedAt = %v, original start time must carry over", rec.ProcessStartedAt)
	}
}

func TestTickChangedEventKeyStillOffersPriorHint(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)
	f.store.records[station.SheetA] = &statestore.Record{
		Station:     station.SheetA,
		EventKey:    station.EventKey("different-occurrence"),
		BroadcastID: "b-old",
	}

	if _, err := f.reconciler.Tick(context.Background(), station.SheetA); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	// The resolver decides whether the old broadcast survives the window
	// edit; a live one must be reachable through the hint.
	if got := f.resolver.priorIDs[0]; got != "b-old" {
		t.Errorf("prior hint = %q, want b-old even for a changed event key", got)
	}
	// A changed occurrence never inherits the old process start time.
	rec := f.store.records[station.SheetA]
	if rec == nil || rec.ProcessStartedAt == nil {
		t.Fatalf("record = %+v, fresh start must persist its own start time", rec)
	}
}

func TestTickProcessRunningStreamInactiveRestartsStream(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)
	f.controller.running = true
	f.controller.streamActive = capture.Inactive

	result, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result != ResultStarted {
		t.Errorf("result = %q, want STARTED", result)
	}
	if f.controller.startCalls != 0 {
		t.Errorf("startCalls = %d, must not relaunch a running process", f.controller.startCalls)
	}
	if f.controller.ensureCalls != 1 {
		t.Errorf("ensureCalls = %d, want 1", f.controller.ensureCalls)
	}
}

func TestTickControlPlaneUnknownFallsBackToRemoteLive(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)
	f.controller.running = true
	f.controller.streamActive = capture.Unknown
	f.resolver.res = broadcast.Resolution{BroadcastID: "b-1", Live: true}

	result, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result != ResultAlreadyLive {
		t.Errorf("result = %q, want ALREADY_LIVE via remote lifecycle fallback", result)
	}
	if f.controller.ensureCalls != 0 {
		t.Errorf("ensureCalls = %d, want 0", f.controller.ensureCalls)
	}
}

func TestTickControlPlaneUnknownRemoteNotLiveRestartsStream(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)
	f.controller.running = true
	f.controller.streamActive = capture.Unknown
	f.resolver.res = broadcast.Resolution{BroadcastID: "b-1", Live: false}

	result, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result != ResultStarted {
		t.Errorf("result = %q, want STARTED", result)
	}
	if f.controller.ensureCalls != 1 {
		t.Errorf("ensureCalls = %d, want 1", f.controller.ensureCalls)
	}
}

func TestTickStreamingFailureDoesNotPersist(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)
	f.controller.ensureErr = services.Wrap(services.ErrTransient, "capture", "ensure streaming", "", nil)

	_, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err == nil {
		t.Fatal("Tick succeeded despite stream verification failure")
	}
	if f.store.writes != 0 {
		t.Errorf("writes = %d, unconfirmed action must not persist", f.store.writes)
	}
}

func TestTickCalendarErrorPropagates(t *testing.T) {
	f := newFixture(nil)
	f.cal.err = services.Wrap(services.ErrTransient, "calendar", "list events", "", errors.New("status 503"))

	_, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	if f.store.clears != 0 || f.store.writes != 0 {
		t.Error("state must not change on an unobserved calendar")
	}
}

func TestTickUnconfiguredStationFails(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)

	_, err := f.reconciler.Tick(context.Background(), station.SheetB)
	if err == nil {
		t.Fatal("Tick succeeded for an unconfigured station")
	}
}

func TestTickSecondPassAfterCrashReusesBroadcast(t *testing.T) {
	window := testWindow()
	f := newFixture(&window)

	// First pass starts everything.
	if _, err := f.reconciler.Tick(context.Background(), station.SheetA); err != nil {
		t.Fatalf("first Tick: %v", err)
	}

	// Simulate a crash between passes: process survives, memory does not.
	f.controller.streamActive = capture.Active
	f.resolver.res = broadcast.Resolution{BroadcastID: "b-1", Live: true}

	result, err := f.reconciler.Tick(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if result != ResultAlreadyLive {
		t.Errorf("result = %q, want ALREADY_LIVE", result)
	}
	if got := f.resolver.priorIDs[1]; got != "b-1" {
		t.Errorf("prior hint = %q, persisted id must survive the crash", got)
	}
	if f.controller.startCalls != 1 {
		t.Errorf("startCalls = %d, want 1 across both passes", f.controller.startCalls)
	}
}
