// Package station holds the station identity and calendar window types
// shared by every other package. A station is one physical capture setup;
// an EventWindow is the calendar occurrence it should currently be
// streaming, and EventKey is the window's derived identity used to detect
// "same occurrence" across polls.
package station
