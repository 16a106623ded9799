package broadcast

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rinkcast/internal/station"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// DisplayName normalizes the event title used inside broadcast titles. The
// caser leaves already-capitalized words alone so operator-entered names
// round-trip unchanged.
func DisplayName(window station.EventWindow) string {
	return titleCaser.String(window.DisplayTitle())
}

// ExpectedTitle builds the deterministic broadcast title for a window and
// station. The create path and both match paths must produce the identical
// string or exact-match resolution silently breaks.
func ExpectedTitle(id station.ID, window station.EventWindow) string {
	start := window.Start.UTC()
	return fmt.Sprintf("%s - %s - %s - %s",
		DisplayName(window),
		id.Tag(),
		start.Format("2006-01-02"),
		start.Format("15:04"),
	)
}

// TitleHasStationTag reports whether a broadcast title encodes the station.
func TitleHasStationTag(title string, id station.ID) bool {
	return strings.Contains(title, id.Tag())
}

// TitleMatchesFuzzy reports whether a broadcast title plausibly refers to
// the same real-world event: it must carry both the event's display name
// and the station tag. This catches title-format drift between revisions
// without creating a second broadcast for the same occurrence.
func TitleMatchesFuzzy(title string, id station.ID, window station.EventWindow) bool {
	return strings.Contains(title, DisplayName(window)) && TitleHasStationTag(title, id)
}
