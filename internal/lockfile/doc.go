// Package lockfile provides the per-station mutual exclusion guard that
// keeps a slow poll and the next timer tick from reconciling the same
// station concurrently. The marker is PID-backed and staleness-checked so
// a crash never wedges the station.
package lockfile
