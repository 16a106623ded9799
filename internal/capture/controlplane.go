package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rinkcast/internal/config"
	"rinkcast/internal/services"
)

// Tristate models an observation that can be genuinely unknowable: the
// control plane may be unreachable while the process is mid-startup, and
// "unknown" must never be conflated with "inactive".
type Tristate int

const (
	Unknown Tristate = iota
	Inactive
	Active
)

func (t Tristate) String() string {
	switch t {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Status is the control plane's view of the capture process outputs.
type Status struct {
	StreamActive Tristate
	RecordActive Tristate
}

// ControlPlane is the command/query connection to the local capture
// process, reachable only over loopback and guarded by a shared secret.
type ControlPlane interface {
	Status(ctx context.Context) (Status, error)
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
	StopOutputs(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// HTTPDoer describes the HTTP client used by the control-plane client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ControlClient implements ControlPlane over the capture process's loopback
// HTTP endpoint.
type ControlClient struct {
	baseURL string
	secret  string
	client  HTTPDoer
}

// ControlOption customizes the control-plane client.
type ControlOption func(*ControlClient)

// WithControlHTTPClient overrides the default HTTP client.
func WithControlHTTPClient(doer HTTPDoer) ControlOption {
	return func(c *ControlClient) {
		if doer != nil {
			c.client = doer
		}
	}
}

// NewControlClient constructs a control-plane client from configuration.
func NewControlClient(cfg config.ControlPlane, opts ...ControlOption) *ControlClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	address := strings.TrimSpace(cfg.Address)
	client := &ControlClient{
		baseURL: "http://" + address,
		secret:  strings.TrimSpace(cfg.Secret),
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type statusPayload struct {
	Streaming *bool `json:"streaming"`
	Recording *bool `json:"recording"`
}

// Status queries stream and record activity. An unreachable control plane
// surfaces as ErrUnavailable; the caller decides how to treat the unknown.
func (c *ControlClient) Status(ctx context.Context) (Status, error) {
	var payload statusPayload
	if err := c.do(ctx, http.MethodGet, "/status", &payload); err != nil {
		return Status{StreamActive: Unknown, RecordActive: Unknown}, err
	}
	return Status{
		StreamActive: fromBoolPtr(payload.Streaming),
		RecordActive: fromBoolPtr(payload.Recording),
	}, nil
}

// StartStream asks the capture process to begin streaming.
func (c *ControlClient) StartStream(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stream/start", nil)
}

// StopStream asks the capture process to stop streaming.
func (c *ControlClient) StopStream(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stream/stop", nil)
}

// StopOutputs stops recording and any ancillary outputs.
func (c *ControlClient) StopOutputs(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/outputs/stop", nil)
}

// Shutdown requests a clean application exit.
func (c *ControlClient) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/shutdown", nil)
}

func (c *ControlClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "control-plane", "build request", "", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "control-plane", method+" "+path, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return services.Wrap(services.ErrConfiguration, "control-plane", method+" "+path, "shared secret rejected", nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return services.Wrap(services.ErrTransient, "control-plane", method+" "+path, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	if out != nil {
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return services.Wrap(services.ErrTransient, "control-plane", "read response", "", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			return services.Wrap(services.ErrTransient, "control-plane", "decode response", "", err)
		}
	}
	return nil
}

func fromBoolPtr(v *bool) Tristate {
	if v == nil {
		return Unknown
	}
	if *v {
		return Active
	}
	return Inactive
}
