// Package config loads, validates, and defaults the TOML configuration.
// Everything configurable lives here and is handed to components as
// constructor arguments; no other package reads environment variables or
// config files directly.
package config
