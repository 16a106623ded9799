package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rinkcast/internal/config"
	"rinkcast/internal/services"
	"rinkcast/internal/station"
)

const pageSize = 50

// Service is the read-only calendar collaborator. It returns at most the
// window currently overlapping "now" for a station's calendar; whole-day
// entries never surface.
type Service interface {
	CurrentWindow(ctx context.Context, calendarID string) (*station.EventWindow, error)
}

// HTTPDoer describes the HTTP client used by the calendar service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries a calendar API over HTTP.
type Client struct {
	baseURL  string
	apiToken string
	lookback time.Duration
	client   HTTPDoer

	// now is swapped out by tests for deterministic window checks.
	now func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a calendar client from configuration.
func NewClient(cfg config.Calendar, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	lookback := time.Duration(cfg.LookbackMinutes) * time.Minute
	if lookback <= 0 {
		lookback = 12 * time.Hour
	}
	client := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiToken: strings.TrimSpace(cfg.APIToken),
		lookback: lookback,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// eventPayload mirrors the wire shape of one calendar entry. Whole-day
// entries carry a date instead of a dateTime in their start/end.
type eventPayload struct {
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	Start       eventInstant `json:"start"`
	End         eventInstant `json:"end"`
}

type eventInstant struct {
	Date     string `json:"date"`
	DateTime string `json:"dateTime"`
}

type eventListPayload struct {
	Items         []eventPayload `json:"items"`
	NextPageToken string         `json:"nextPageToken"`
}

// CurrentWindow returns the first event window overlapping "now", searching
// back far enough to catch long events that started hours ago. Pagination is
// followed until the page token runs out.
func (c *Client) CurrentWindow(ctx context.Context, calendarID string) (*station.EventWindow, error) {
	if strings.TrimSpace(calendarID) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "calendar", "current window", "calendar id is empty", nil)
	}

	now := c.now().UTC()
	timeMin := now.Add(-c.lookback)
	timeMax := now.Add(time.Minute)

	pageToken := ""
	for {
		page, err := c.listPage(ctx, calendarID, timeMin, timeMax, pageToken)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			window, ok := item.toWindow()
			if !ok {
				continue
			}
			if window.Contains(now) {
				return &window, nil
			}
		}
		if page.NextPageToken == "" {
			return nil, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) listPage(ctx context.Context, calendarID string, timeMin, timeMax time.Time, pageToken string) (*eventListPayload, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
	query := url.Values{}
	query.Set("timeMin", timeMin.Format(time.RFC3339))
	query.Set("timeMax", timeMax.Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", strconv.Itoa(pageSize))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "calendar", "build request", "", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "calendar", "list events", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "calendar", "list events", "calendar "+calendarID, nil)
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, services.Wrap(services.ErrTransient, "calendar", "list events", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "calendar", "list events", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "calendar", "read response", "", err)
	}
	var page eventListPayload
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, services.Wrap(services.ErrTransient, "calendar", "decode response", "", err)
	}
	return &page, nil
}

// toWindow converts a wire event into a window, rejecting whole-day entries
// and entries with unparsable instants.
func (e eventPayload) toWindow() (station.EventWindow, bool) {
	if e.Start.Date != "" || e.End.Date != "" {
		return station.EventWindow{}, false
	}
	if e.Start.DateTime == "" || e.End.DateTime == "" {
		return station.EventWindow{}, false
	}
	start, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return station.EventWindow{}, false
	}
	end, err := time.Parse(time.RFC3339, e.End.DateTime)
	if err != nil {
		return station.EventWindow{}, false
	}
	return station.EventWindow{
		Start:       start.UTC(),
		End:         end.UTC(),
		Title:       strings.TrimSpace(e.Summary),
		Description: strings.TrimSpace(e.Description),
	}, true
}
