package station

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// EventWindow is one calendar occurrence for a station. It is re-read every
// poll and never persisted; only its derived EventKey survives across polls.
type EventWindow struct {
	Start       time.Time
	End         time.Time
	Title       string
	Description string
}

// Contains reports whether the window overlaps the given instant. The end
// bound is exclusive so back-to-back windows never overlap.
func (w EventWindow) Contains(now time.Time) bool {
	return !w.Start.After(now) && now.Before(w.End)
}

// DisplayTitle returns the trimmed event title, falling back to a fixed
// label when the calendar entry has none.
func (w EventWindow) DisplayTitle() string {
	title := strings.TrimSpace(w.Title)
	if title == "" {
		return "Scheduled Broadcast"
	}
	return title
}

// Key derives the logical identity of the window. Editing the start, end, or
// title makes a different event; a stale broadcast is then re-resolved
// instead of silently relabeled.
func (w EventWindow) Key() EventKey {
	h := sha256.New()
	h.Write([]byte(w.Start.UTC().Format(time.RFC3339)))
	h.Write([]byte{'|'})
	h.Write([]byte(w.End.UTC().Format(time.RFC3339)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.TrimSpace(w.Title)))
	return EventKey(hex.EncodeToString(h.Sum(nil)[:16]))
}

// EventKey is the derived identity of an EventWindow.
type EventKey string

func (k EventKey) String() string { return string(k) }
