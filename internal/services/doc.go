// Package services defines the shared error taxonomy and context plumbing
// used by the calendar, video-platform, and control-plane collaborators.
//
// Every collaborator tags its failures with one of the sentinel errors so
// the reconciler can decide between "retry on the next poll" (transient,
// unavailable), "re-resolve from scratch" (invariant), and "abort the pass"
// (configuration) without inspecting error strings.
package services
