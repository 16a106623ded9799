package statestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rinkcast/internal/config"
	"rinkcast/internal/station"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rejected with ErrSchemaMismatch.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Record is the persisted reconciliation outcome for one station. It is the
// only state that survives restarts of the reconciler.
type Record struct {
	Station          station.ID
	EventKey         station.EventKey
	BroadcastID      string
	ProcessStartedAt *time.Time
	UpdatedAt        time.Time
}

// Store manages per-station reconciliation state backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.StateDir, "state.db"))
}

// OpenPath connects to the state database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location backing the store.
func (s *Store) Path() string { return s.path }

// Read returns the persisted state for a station, or nil when none exists.
// A corrupt record degrades to "no prior state" rather than failing the
// poll; the reconciler re-resolves from scratch in that case.
func (s *Store) Read(ctx context.Context, id station.ID) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT station, event_key, broadcast_id, process_started_at, updated_at
         FROM station_state WHERE station = ?`, string(id))

	var rec Record
	var stationRaw, eventKey, broadcastID, updatedAt string
	var startedAt sql.NullString
	err := row.Scan(&stationRaw, &eventKey, &broadcastID, &startedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read station state: %w", err)
	}

	if strings.TrimSpace(eventKey) == "" || strings.TrimSpace(broadcastID) == "" {
		return nil, nil
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, nil
	}

	rec.Station = station.ID(stationRaw)
	rec.EventKey = station.EventKey(eventKey)
	rec.BroadcastID = broadcastID
	rec.UpdatedAt = updated
	if startedAt.Valid && strings.TrimSpace(startedAt.String) != "" {
		if ts, err := time.Parse(time.RFC3339Nano, startedAt.String); err == nil {
			rec.ProcessStartedAt = &ts
		}
	}
	return &rec, nil
}

// Write fully replaces the persisted state for a station.
func (s *Store) Write(ctx context.Context, rec Record) error {
	if strings.TrimSpace(string(rec.Station)) == "" {
		return errors.New("record requires a station")
	}
	if strings.TrimSpace(string(rec.EventKey)) == "" || strings.TrimSpace(rec.BroadcastID) == "" {
		return errors.New("record requires event key and broadcast id")
	}

	var startedAt any
	if rec.ProcessStartedAt != nil {
		startedAt = rec.ProcessStartedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO station_state (station, event_key, broadcast_id, process_started_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(station) DO UPDATE SET
             event_key = excluded.event_key,
             broadcast_id = excluded.broadcast_id,
             process_started_at = excluded.process_started_at,
             updated_at = excluded.updated_at`,
		string(rec.Station),
		string(rec.EventKey),
		rec.BroadcastID,
		startedAt,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write station state: %w", err)
	}
	return nil
}

// Clear removes the persisted state for a station. Clearing an absent record
// is a no-op.
func (s *Store) Clear(ctx context.Context, id station.ID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM station_state WHERE station = ?`, string(id)); err != nil {
		return fmt.Errorf("clear station state: %w", err)
	}
	return nil
}

// All returns the persisted state for every station, for operator display.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT station FROM station_state ORDER BY station`)
	if err != nil {
		return nil, fmt.Errorf("list station state: %w", err)
	}
	defer rows.Close()

	var ids []station.ID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		ids = append(ids, station.ID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate station state: %w", err)
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
