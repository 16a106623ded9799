// Command rinkcast reconciles calendar-scheduled curling broadcasts: one
// pass per poll per station, keeping the remote broadcast, the local
// capture process, and persisted state in agreement.
package main
