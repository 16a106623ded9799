// Package pollrun drives repeated reconciliation passes for a station on a
// fixed interval, with two layers of mutual exclusion: a process-wide flock
// per station for the loop itself, and the marker lock around each pass.
package pollrun
