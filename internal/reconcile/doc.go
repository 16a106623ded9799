// Package reconcile implements the per-poll decision procedure that keeps
// one station's calendar, remote broadcast, and local capture process in
// agreement. Each pass derives its view fresh from the three sources and
// returns one of four results: STARTED, ALREADY_LIVE, STOPPED, IDLE.
//
// Two ordering rules hold within a pass: broadcast resolution completes
// before any process-start action, and the state store is written only
// after the corresponding action has been confirmed. Retries across
// separate polls, not within a pass, are how the system reaches eventual
// success.
package reconcile
