package config

import (
	"errors"
	"fmt"
	"strings"

	"rinkcast/internal/station"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCalendar(); err != nil {
		return err
	}
	if err := c.validatePlatform(); err != nil {
		return err
	}
	if err := c.validateControlPlane(); err != nil {
		return err
	}
	if err := c.validateReconciler(); err != nil {
		return err
	}
	if err := c.validateStations(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCalendar() error {
	if strings.TrimSpace(c.Calendar.BaseURL) == "" {
		return errors.New("calendar.base_url must be set")
	}
	if c.Calendar.LookbackMinutes <= 0 {
		return errors.New("calendar.lookback_minutes must be positive")
	}
	if c.Calendar.TimeoutSeconds <= 0 {
		return errors.New("calendar.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePlatform() error {
	if strings.TrimSpace(c.Platform.BaseURL) == "" {
		return errors.New("platform.base_url must be set")
	}
	if strings.TrimSpace(c.Platform.APIToken) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/rinkcast/config.toml"
		}
		return fmt.Errorf("platform.api_token is required. Set RINKCAST_PLATFORM_TOKEN or edit %s (create with 'rinkcast config init')", defaultPath)
	}
	if c.Platform.SearchPageSize <= 0 || c.Platform.SearchPageSize > 200 {
		return errors.New("platform.search_page_size must be between 1 and 200")
	}
	if c.Platform.DuplicateLookbackMinutes <= 0 {
		return errors.New("platform.duplicate_lookback_minutes must be positive")
	}
	if c.Platform.ScheduleGraceMinutes <= 0 {
		return errors.New("platform.schedule_grace_minutes must be positive")
	}
	return nil
}

func (c *Config) validateControlPlane() error {
	addr := strings.TrimSpace(c.ControlPlane.Address)
	if addr == "" {
		return errors.New("control_plane.address must be set")
	}
	if !strings.HasPrefix(addr, "127.") && !strings.HasPrefix(addr, "localhost:") {
		return fmt.Errorf("control_plane.address %q must be a loopback address", addr)
	}
	if strings.TrimSpace(c.ControlPlane.Secret) == "" {
		return errors.New("control_plane.secret is required (set RINKCAST_CONTROL_SECRET or control_plane.secret)")
	}
	if c.ControlPlane.TimeoutSeconds <= 0 {
		return errors.New("control_plane.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateReconciler() error {
	if c.Reconciler.PollIntervalSeconds < 10 {
		return errors.New("reconciler.poll_interval_seconds must be at least 10")
	}
	if c.Reconciler.LockStaleMinutes <= 0 {
		return errors.New("reconciler.lock_stale_minutes must be positive")
	}
	return nil
}

func (c *Config) validateStations() error {
	if len(c.Stations) == 0 {
		return errors.New("at least one [stations.<id>] table must be configured")
	}
	for key, st := range c.Stations {
		if _, err := station.Parse(key); err != nil {
			return fmt.Errorf("stations.%s: %w", key, err)
		}
		if strings.TrimSpace(st.CalendarID) == "" {
			return fmt.Errorf("stations.%s.calendar_id must be set", key)
		}
		hasID := strings.TrimSpace(st.StreamID) != ""
		hasKey := strings.TrimSpace(st.StreamKey) != ""
		if hasID == hasKey {
			return fmt.Errorf("stations.%s: exactly one of stream_id and stream_key must be set", key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
