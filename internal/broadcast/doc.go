// Package broadcast wraps the video platform's broadcast API in typed
// calls and implements broadcast resolution: given a station and its
// current calendar window, produce exactly one usable remote broadcast,
// reusing or cleaning up what previous polls (or crashed passes) left
// behind before ever creating a new one. The title is the only correlation
// key the platform offers, so its construction is deterministic and shared
// by the create and match paths.
package broadcast
