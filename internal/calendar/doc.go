// Package calendar is the read-only collaborator that answers "what should
// this station be streaming right now". It queries the calendar API with a
// bounded lookback so events that started hours ago still match, and it
// drops whole-day entries before they reach the reconciler.
package calendar
