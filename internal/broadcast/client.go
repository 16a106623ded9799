package broadcast

import (
	"bytes"
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
)

// Lifecycle is the remote broadcast lifecycle status. Everything except
// complete is a live candidate.
type Lifecycle string

const (
	LifecycleCreated  Lifecycle = "created"
	LifecycleReady    Lifecycle = "ready"
	LifecycleTesting  Lifecycle = "testing"
	LifecycleLive     Lifecycle = "live"
	LifecycleComplete Lifecycle = "complete"
)

// Terminal reports whether the broadcast can no longer be streamed to.
func (l Lifecycle) Terminal() bool { return l == LifecycleComplete }

// Broadcast is the remote video-platform entity referenced (never owned) by
// this system.
type Broadcast struct {
	ID            string
	Title         string
	Description   string
	Lifecycle     Lifecycle
	PublishedAt   time.Time
	BoundStreamID string
}

// NewBroadcast carries the fields for a broadcast create call. The remote
// API rejects scheduled start times in the past.
type NewBroadcast struct {
	Title          string
	Description    string
	ScheduledStart time.Time
}

// BroadcastUpdate carries the mutable fields for an update call. Zero-value
// fields are left unchanged on the remote side.
type BroadcastUpdate struct {
	Title       string
	Description string
}

// Service is the video-platform collaborator.
type Service interface {
	Get(ctx context.Context, id string) (*Broadcast, error)
	ListRecent(ctx context.Context, max int) ([]Broadcast, error)
	Create(ctx context.Context, spec NewBroadcast) (*Broadcast, error)
	Update(ctx context.Context, id string, upd BroadcastUpdate) (*Broadcast, error)
	Delete(ctx context.Context, id string) error
	Bind(ctx context.Context, broadcastID, streamID string) error
	LookupStreamID(ctx context.Context, streamKey string) (string, error)
}

// HTTPDoer describes the HTTP client used by the platform service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the video platform's broadcast API.
type Client struct {
	baseURL  string
	apiToken string
	client   HTTPDoer
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

// NewClient constructs a platform client from configuration.
func NewClient(cfg config.Platform, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiToken: strings.TrimSpace(cfg.APIToken),
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type broadcastPayload struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Status        string `json:"lifecycleStatus"`
	PublishedAt   string `json:"publishedAt"`
	BoundStreamID string `json:"boundStreamId"`
}

type broadcastListPayload struct {
	Items []broadcastPayload `json:"items"`
}

type streamPayload struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type streamListPayload struct {
	Items []streamPayload `json:"items"`
}

// Get fetches one broadcast by id. A deleted broadcast returns nil, not an
// error, so callers can fall through to search or create.
func (c *Client) Get(ctx context.Context, id string) (*Broadcast, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var payload broadcastPayload
	status, err := c.do(ctx, http.MethodGet, "/broadcasts/"+url.PathEscape(id), nil, &payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	b := payload.toBroadcast()
	return &b, nil
}

// ListRecent returns the account's most recent broadcasts, newest first,
// bounded by max.
func (c *Client) ListRecent(ctx context.Context, max int) ([]Broadcast, error) {
	if max <= 0 {
		max = 50
	}
	var payload broadcastListPayload
	path := "/broadcasts?order=publishedAt&maxResults=" + strconv.Itoa(max)
	status, err := c.do(ctx, http.MethodGet, path, nil, &payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	broadcasts := make([]Broadcast, 0, len(payload.Items))
	for _, item := range payload.Items {
		broadcasts = append(broadcasts, item.toBroadcast())
	}
	return broadcasts, nil
}

// Create schedules a new broadcast.
func (c *Client) Create(ctx context.Context, spec NewBroadcast) (*Broadcast, error) {
	body := map[string]string{
		"title":              spec.Title,
		"description":        spec.Description,
		"scheduledStartTime": spec.ScheduledStart.UTC().Format(time.RFC3339),
	}
	var payload broadcastPayload
	status, err := c.do(ctx, http.MethodPost, "/broadcasts", body, &payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, services.Wrap(services.ErrTransient, "platform", "create broadcast", fmt.Sprintf("status %d", status), nil)
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, services.Wrap(services.ErrTransient, "platform", "create broadcast", "response missing id", nil)
	}
	b := payload.toBroadcast()
	return &b, nil
}

// Update patches a broadcast's mutable fields. The resolver never relabels
// a live broadcast; this exists for operator tooling and manual repair.
func (c *Client) Update(ctx context.Context, id string, upd BroadcastUpdate) (*Broadcast, error) {
	body := map[string]string{}
	if upd.Title != "" {
		body["title"] = upd.Title
	}
	if upd.Description != "" {
		body["description"] = upd.Description
	}
	var payload broadcastPayload
	status, err := c.do(ctx, http.MethodPatch, "/broadcasts/"+url.PathEscape(id), body, &payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "platform", "update broadcast", id, nil)
	}
	b := payload.toBroadcast()
	return &b, nil
}

// Delete removes a broadcast. Deleting an already-gone broadcast succeeds.
func (c *Client) Delete(ctx context.Context, id string) error {
	status, err := c.do(ctx, http.MethodDelete, "/broadcasts/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return nil
	}
	return nil
}

// Bind points a broadcast at an output stream.
func (c *Client) Bind(ctx context.Context, broadcastID, streamID string) error {
	body := map[string]string{"streamId": streamID}
	path := "/broadcasts/" + url.PathEscape(broadcastID) + "/bind"
	status, err := c.do(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "platform", "bind broadcast", broadcastID, nil)
	}
	return nil
}

// LookupStreamID resolves a configured stream key to the platform's opaque
// stream id. A key with no match is a configuration error; proceeding would
// stream to the wrong destination.
func (c *Client) LookupStreamID(ctx context.Context, streamKey string) (string, error) {
	var payload streamListPayload
	if _, err := c.do(ctx, http.MethodGet, "/streams", nil, &payload); err != nil {
		return "", err
	}
	for _, item := range payload.Items {
		if item.Key == streamKey {
			return item.ID, nil
		}
	}
	return "", services.Wrap(services.ErrConfiguration, "platform", "lookup stream", "no stream matches key "+streamKey, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, services.Wrap(services.ErrConfiguration, "platform", "encode request", "", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "platform", "build request", "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrUnavailable, "platform", method+" "+path, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resp.StatusCode, services.Wrap(services.ErrConfiguration, "platform", method+" "+path, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return resp.StatusCode, services.Wrap(services.ErrTransient, "platform", method+" "+path, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	if out != nil && resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusNoContent {
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return resp.StatusCode, services.Wrap(services.ErrTransient, "platform", "read response", "", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, services.Wrap(services.ErrTransient, "platform", "decode response", "", err)
		}
	}
	return resp.StatusCode, nil
}

func (p broadcastPayload) toBroadcast() Broadcast {
	published, _ := time.Parse(time.RFC3339, p.PublishedAt)
	lifecycle := Lifecycle(strings.ToLower(strings.TrimSpace(p.Status)))
	if lifecycle == "" {
		lifecycle = LifecycleCreated
	}
	return Broadcast{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		Lifecycle:     lifecycle,
		PublishedAt:   published.UTC(),
		BoundStreamID: p.BoundStreamID,
	}
}
