// Package retry provides the single bounded retry-with-backoff primitive
// shared by every collaborator call site. Remote calls are never retried
// indefinitely within one pass; eventual success comes from the polling
// driver re-running the whole pass.
package retry
