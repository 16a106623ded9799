package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrTransient marks a remote failure worth retrying on a later poll.
	ErrTransient = errors.New("transient failure")
	// ErrNotFound marks a remote entity that no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks a collaborator that cannot be reached at all.
	ErrUnavailable = errors.New("unavailable")
	// ErrConfiguration marks a fatal configuration problem; the pass must abort.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvariant marks persisted state that contradicts observed remote state.
	ErrInvariant = errors.New("invariant violation")
)

// Wrap builds an error message that includes collaborator context while
// tagging it with the provided marker for later classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the error is worth another attempt, either
// within the current pass or on a later poll. Configuration and invariant
// errors are never retryable; anything tagged transient or unavailable is,
// as are raw network timeouts and refused connections.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInvariant), errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, ErrTransient), errors.Is(err, ErrUnavailable):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
