// Package statestore persists the last known reconciliation outcome per
// station. One row per station, replaced whole on every write; readers never
// see a partial merge. The reconciler re-validates the cached broadcast id
// against the remote platform every poll instead of trusting this cache.
package statestore
