package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"rinkcast/internal/logging"
	"rinkcast/internal/station"
)

const defaultStaleAfter = 10 * time.Minute

type marker struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock guards one station's reconciliation pass against overlapping polls.
// The marker records the holder's process id and acquisition time; a marker
// whose process is dead or older than the staleness threshold is reclaimed.
type Lock struct {
	dir        string
	staleAfter time.Duration
	logger     *slog.Logger

	// pidAlive is swapped out by tests to simulate dead holders.
	pidAlive func(pid int) bool
}

// New constructs a lock rooted at dir. A zero staleAfter selects the
// default threshold.
func New(dir string, staleAfter time.Duration, logger *slog.Logger) *Lock {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Lock{
		dir:        dir,
		staleAfter: staleAfter,
		logger:     logging.NewComponentLogger(logger, "lockfile"),
		pidAlive:   pidAlive,
	}
}

// TryAcquire attempts to take the station's lock. It returns false when
// another pass genuinely holds it; stale markers left behind by crashed
// passes are reclaimed.
func (l *Lock) TryAcquire(id station.ID) (bool, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	path := l.path(id)
	for attempt := 0; attempt < 2; attempt++ {
		created, err := l.createMarker(path)
		if err != nil {
			return false, err
		}
		if created {
			return true, nil
		}

		existing, err := l.readMarker(path)
		if err != nil {
			// Unreadable marker: treat as stale debris.
			l.logger.Warn("removing unreadable lock marker",
				logging.String(logging.FieldStation, id.String()),
				logging.Error(err),
			)
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return false, fmt.Errorf("remove unreadable lock marker: %w", err)
			}
			continue
		}

		if l.pidAlive(existing.PID) && time.Since(existing.AcquiredAt) < l.staleAfter {
			return false, nil
		}

		l.logger.Warn("reclaiming stale lock marker",
			logging.String(logging.FieldStation, id.String()),
			logging.Int("holder_pid", existing.PID),
			logging.Time("acquired_at", existing.AcquiredAt),
		)
		if err := l.removeMarkerIfUnchanged(path, existing); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Release removes the station's lock marker. Releasing an absent marker is
// a no-op.
func (l *Lock) Release(id station.ID) error {
	if err := os.Remove(l.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (l *Lock) path(id station.ID) string {
	return filepath.Join(l.dir, fmt.Sprintf("station-%s.lock", id))
}

func (l *Lock) createMarker(path string) (bool, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock marker: %w", err)
	}
	defer file.Close()

	m := marker{PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
	if err := json.NewEncoder(file).Encode(m); err != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("write lock marker: %w", err)
	}
	return true, nil
}

// removeMarkerIfUnchanged deletes the marker only while it still carries
// the content previously judged stale. A concurrent acquirer may have
// reclaimed the marker and written its own in the meantime; deleting that
// one would let two passes run at once.
func (l *Lock) removeMarkerIfUnchanged(path string, expected marker) error {
	current, err := l.readMarker(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		// The marker changed under us; leave it for the next attempt.
		return nil
	}
	if current.PID != expected.PID || !current.AcquiredAt.Equal(expected.AcquiredAt) {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reclaim lock marker: %w", err)
	}
	return nil
}

func (l *Lock) readMarker(path string) (marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return marker{}, err
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return marker{}, err
	}
	if m.PID <= 0 {
		return marker{}, errors.New("lock marker missing pid")
	}
	return m, nil
}

// pidAlive probes the process table with signal 0. EPERM still means the
// process exists.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
