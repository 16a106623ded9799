package station

import (
	"fmt"
	"sort"
	"strings"
)

// ID identifies one physical capture station (sheet A through D). Every
// persisted record, lock marker, and broadcast title is scoped by it.
type ID string

const (
	SheetA ID = "A"
	SheetB ID = "B"
	SheetC ID = "C"
	SheetD ID = "D"
)

var known = map[ID]struct{}{
	SheetA: {},
	SheetB: {},
	SheetC: {},
	SheetD: {},
}

// Parse validates a station identifier supplied on the command line or in
// configuration. Matching is case-insensitive.
func Parse(value string) (ID, error) {
	id := ID(strings.ToUpper(strings.TrimSpace(value)))
	if id == "" {
		return "", fmt.Errorf("station identifier is required (one of %s)", strings.Join(AllStrings(), ", "))
	}
	if _, ok := known[id]; !ok {
		return "", fmt.Errorf("unknown station %q (one of %s)", value, strings.Join(AllStrings(), ", "))
	}
	return id, nil
}

// All returns the fixed station set in stable order.
func All() []ID {
	ids := make([]ID, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AllStrings returns the fixed station set as plain strings, for messages
// and flag help text.
func AllStrings() []string {
	ids := All()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func (id ID) String() string { return string(id) }

// Tag returns the marker embedded in broadcast titles to correlate a remote
// broadcast back to this station.
func (id ID) Tag() string {
	return "Station " + string(id)
}
