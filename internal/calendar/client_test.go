package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rinkcast/internal/config"
	"rinkcast/internal/services"
)

var testNow = time.Date(2025, 2, 1, 19, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.Calendar{
		BaseURL:         server.URL,
		APIToken:        "cal-token",
		LookbackMinutes: 720,
		TimeoutSeconds:  5,
	}, WithClock(func() time.Time { return testNow }))
}

func eventJSON(start, end time.Time, summary string) map[string]any {
	return map[string]any{
		"summary": summary,
		"start":   map[string]string{"dateTime": start.Format(time.RFC3339)},
		"end":     map[string]string{"dateTime": end.Format(time.RFC3339)},
	}
}

func TestCurrentWindowFindsOverlappingEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer cal-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("singleEvents"); got != "true" {
			t.Errorf("singleEvents = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []any{
				eventJSON(testNow.Add(-3*time.Hour), testNow.Add(-time.Hour), "Earlier Draw"),
				eventJSON(testNow.Add(-time.Hour), testNow.Add(time.Hour), "Bonspiel Final"),
			},
		})
	})

	window, err := client.CurrentWindow(context.Background(), "cal-a")
	if err != nil {
		t.Fatalf("CurrentWindow: %v", err)
	}
	if window == nil || window.Title != "Bonspiel Final" {
		t.Fatalf("window = %+v", window)
	}
}

func TestCurrentWindowSkipsWholeDayEvents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []any{
				map[string]any{
					"summary": "Club Holiday",
					"start":   map[string]string{"date": "2025-02-01"},
					"end":     map[string]string{"date": "2025-02-02"},
				},
			},
		})
	})

	window, err := client.CurrentWindow(context.Background(), "cal-a")
	if err != nil {
		t.Fatalf("CurrentWindow: %v", err)
	}
	if window != nil {
		t.Fatalf("whole-day event must not surface, got %+v", window)
	}
}

func TestCurrentWindowFollowsPagination(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("pageToken") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items":         []any{eventJSON(testNow.Add(-6*time.Hour), testNow.Add(-5*time.Hour), "Morning Draw")},
				"nextPageToken": "page-2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []any{eventJSON(testNow.Add(-time.Hour), testNow.Add(time.Hour), "Evening Draw")},
		})
	})

	window, err := client.CurrentWindow(context.Background(), "cal-a")
	if err != nil {
		t.Fatalf("CurrentWindow: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if window == nil || window.Title != "Evening Draw" {
		t.Fatalf("window = %+v", window)
	}
}

func TestCurrentWindowReturnsNilWhenIdle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	})

	window, err := client.CurrentWindow(context.Background(), "cal-a")
	if err != nil {
		t.Fatalf("CurrentWindow: %v", err)
	}
	if window != nil {
		t.Fatalf("window = %+v, want nil", window)
	}
}

func TestCurrentWindowClassifiesServerErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.CurrentWindow(context.Background(), "cal-a")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
}

func TestCurrentWindowRejectsEmptyCalendarID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := client.CurrentWindow(context.Background(), " ")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}
