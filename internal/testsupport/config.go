package testsupport

import (
	"path/filepath"
	"testing"

	"rinkcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Calendar.APIToken = "test-calendar-token"
	cfgVal.Platform.APIToken = "test-platform-token"
	cfgVal.ControlPlane.Secret = "test-secret"
	cfgVal.Stations = map[string]config.Station{
		"A": {
			CalendarID:     "cal-a",
			StreamID:       "str-000a",
			CaptureProfile: "curling-1080p",
			OutputProfile:  "station-a",
		},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStation adds or replaces a station entry on the test config.
func WithStation(id string, st config.Station) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Stations == nil {
			b.cfg.Stations = make(map[string]config.Station)
		}
		b.cfg.Stations[id] = st
	}
}

// WithPlatform overrides the platform section on the test config.
func WithPlatform(platform config.Platform) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Platform = platform
	}
}

// WithCalendarBaseURL points the calendar collaborator at a test server.
func WithCalendarBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Calendar.BaseURL = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
