package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Calendar contains configuration for the read-only calendar collaborator.
type Calendar struct {
	BaseURL         string `toml:"base_url"`
	APIToken        string `toml:"api_token"`
	LookbackMinutes int    `toml:"lookback_minutes"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Platform contains configuration for the video platform API.
type Platform struct {
	BaseURL                  string `toml:"base_url"`
	APIToken                 string `toml:"api_token"`
	SearchPageSize           int    `toml:"search_page_size"`
	DuplicateLookbackMinutes int    `toml:"duplicate_lookback_minutes"`
	ScheduleGraceMinutes     int    `toml:"schedule_grace_minutes"`
	TimeoutSeconds           int    `toml:"timeout_seconds"`
}

// Capture contains configuration for the local capture process.
type Capture struct {
	Binary                 string `toml:"binary"`
	StartTimeoutSeconds    int    `toml:"start_timeout_seconds"`
	StopTimeoutSeconds     int    `toml:"stop_timeout_seconds"`
	PostLaunchGraceSeconds int    `toml:"post_launch_grace_seconds"`
}

// ControlPlane contains configuration for the loopback control connection
// to the capture process.
type ControlPlane struct {
	Address        string `toml:"address"`
	Secret         string `toml:"secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Reconciler contains timing configuration for the polling driver.
type Reconciler struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	LockStaleMinutes    int `toml:"lock_stale_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Station contains per-station wiring: which calendar feeds it and which
// platform output it streams to. Exactly one of StreamID and StreamKey must
// be set; a key is resolved to an id through the platform's stream lookup.
type Station struct {
	CalendarID     string `toml:"calendar_id"`
	StreamID       string `toml:"stream_id"`
	StreamKey      string `toml:"stream_key"`
	CaptureProfile string `toml:"capture_profile"`
	OutputProfile  string `toml:"output_profile"`
}

// Config is the root configuration object constructed once at startup and
// passed to every component explicitly.
type Config struct {
	Paths        Paths              `toml:"paths"`
	Calendar     Calendar           `toml:"calendar"`
	Platform     Platform           `toml:"platform"`
	Capture      Capture            `toml:"capture"`
	ControlPlane ControlPlane       `toml:"control_plane"`
	Reconciler   Reconciler         `toml:"reconciler"`
	Logging      Logging            `toml:"logging"`
	Stations     map[string]Station `toml:"stations"`
}

// StationConfig returns the wiring for one station.
func (c *Config) StationConfig(id string) (Station, error) {
	st, ok := c.Stations[id]
	if !ok {
		return Station{}, fmt.Errorf("station %q is not configured (add a [stations.%s] table)", id, id)
	}
	return st, nil
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/rinkcast/config.toml")
}

// Load locates, parses, and validates a configuration file. A `.env` file in
// the working directory is applied first so credential overrides can live
// outside the TOML file. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("RINKCAST_PLATFORM_TOKEN")); v != "" {
		c.Platform.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("RINKCAST_CALENDAR_TOKEN")); v != "" {
		c.Calendar.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("RINKCAST_CONTROL_SECRET")); v != "" {
		c.ControlPlane.Secret = v
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.BaseURL), "/")
	c.Calendar.BaseURL = strings.TrimRight(strings.TrimSpace(c.Calendar.BaseURL), "/")
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("rinkcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
