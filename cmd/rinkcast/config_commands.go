package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"rinkcast/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set api tokens (or export RINKCAST_PLATFORM_TOKEN / RINKCAST_CALENDAR_TOKEN) and add your station calendars before running.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state_dir: %s\n", cfg.Paths.StateDir)
			fmt.Fprintf(out, "log_dir: %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "calendar.base_url: %s\n", cfg.Calendar.BaseURL)
			fmt.Fprintf(out, "calendar.api_token: %s\n", redactSecret(cfg.Calendar.APIToken))
			fmt.Fprintf(out, "calendar.lookback_minutes: %d\n", cfg.Calendar.LookbackMinutes)
			fmt.Fprintf(out, "platform.base_url: %s\n", cfg.Platform.BaseURL)
			fmt.Fprintf(out, "platform.api_token: %s\n", redactSecret(cfg.Platform.APIToken))
			fmt.Fprintf(out, "capture.binary: %s\n", cfg.Capture.Binary)
			fmt.Fprintf(out, "control_plane.address: %s\n", cfg.ControlPlane.Address)
			fmt.Fprintf(out, "control_plane.secret: %s\n", redactSecret(cfg.ControlPlane.Secret))
			fmt.Fprintf(out, "reconciler.poll_interval_seconds: %d\n", cfg.Reconciler.PollIntervalSeconds)
			fmt.Fprintf(out, "logging: %s/%s\n", cfg.Logging.Format, cfg.Logging.Level)

			ids := make([]string, 0, len(cfg.Stations))
			for id := range cfg.Stations {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				st := cfg.Stations[id]
				fmt.Fprintf(out, "stations.%s: calendar=%s profile=%s collection=%s\n",
					id, st.CalendarID, st.CaptureProfile, st.OutputProfile)
			}
			return nil
		},
	}
}

// redactSecret keeps a short prefix so operators can tell credentials apart
// without the full value ever reaching a terminal or log.
func redactSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "(unset)"
	}
	if len(trimmed) <= 6 {
		return "***"
	}
	return trimmed[:4] + "…"
}
