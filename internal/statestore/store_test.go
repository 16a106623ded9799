package statestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rinkcast/internal/station"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestReadMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)
	rec, err := store.Read(context.Background(), station.SheetA)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, 2, 1, 18, 3, 0, 0, time.UTC)
	rec := Record{
		Station:          station.SheetA,
		EventKey:         "abc123",
		BroadcastID:      "bcast-1",
		ProcessStartedAt: &started,
	}
	if err := store.Write(ctx, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.Read(ctx, station.SheetA)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil {
		t.Fatal("expected record after write")
	}
	if got.EventKey != rec.EventKey || got.BroadcastID != rec.BroadcastID {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.ProcessStartedAt == nil || !got.ProcessStartedAt.Equal(started) {
		t.Errorf("ProcessStartedAt = %v, want %v", got.ProcessStartedAt, started)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be populated")
	}
}

func TestWriteReplacesWhole(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC()
	if err := store.Write(ctx, Record{Station: station.SheetA, EventKey: "k1", BroadcastID: "b1", ProcessStartedAt: &started}); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ctx, Record{Station: station.SheetA, EventKey: "k2", BroadcastID: "b2"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read(ctx, station.SheetA)
	if err != nil {
		t.Fatal(err)
	}
	if got.EventKey != "k2" || got.BroadcastID != "b2" {
		t.Errorf("second write should replace first: %+v", got)
	}
	if got.ProcessStartedAt != nil {
		t.Error("ProcessStartedAt should be cleared by full replace")
	}
}

func TestStationsAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, Record{Station: station.SheetA, EventKey: "ka", BroadcastID: "ba"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ctx, Record{Station: station.SheetB, EventKey: "kb", BroadcastID: "bb"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(ctx, station.SheetA); err != nil {
		t.Fatal(err)
	}

	recA, _ := store.Read(ctx, station.SheetA)
	if recA != nil {
		t.Error("station A should be cleared")
	}
	recB, err := store.Read(ctx, station.SheetB)
	if err != nil || recB == nil || recB.BroadcastID != "bb" {
		t.Errorf("station B must be untouched: %+v err=%v", recB, err)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Clear(ctx, station.SheetC); err != nil {
		t.Fatalf("clearing absent state should succeed: %v", err)
	}
}

func TestCorruptRecordDegradesToAbsent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO station_state (station, event_key, broadcast_id, process_started_at, updated_at)
         VALUES ('A', 'k', 'b', NULL, 'not-a-timestamp')`)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := store.Read(ctx, station.SheetA)
	if err != nil {
		t.Fatalf("corrupt record must not fail the poll: %v", err)
	}
	if rec != nil {
		t.Errorf("corrupt record should read as absent, got %+v", rec)
	}
}

func TestAllListsRecords(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []station.ID{station.SheetB, station.SheetA} {
		if err := store.Write(ctx, Record{Station: id, EventKey: "k", BroadcastID: "b"}); err != nil {
			t.Fatal(err)
		}
	}
	records, err := store.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Station != station.SheetA {
		t.Errorf("All = %+v", records)
	}
}
