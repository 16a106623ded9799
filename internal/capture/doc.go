// Package capture owns the local capture process: structural process-table
// checks, clean-slate launches, stream verification through the loopback
// control plane, and graceful-then-forceful shutdown. The reconciler only
// consumes "running" and "stream active" signals from here; it never
// touches the process directly.
package capture
