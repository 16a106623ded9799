// Package logging wraps log/slog with the project's console and JSON
// handlers, standardized field keys, and helpers for component-scoped and
// context-scoped loggers. Credentials go through Secret so shared tokens
// are never written to a log in full.
package logging
