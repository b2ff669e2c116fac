// Package filter maps human-readable search filter names to the bitmask query
// parameters understood by the search endpoints.
package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Group is the query parameter a filter contributes its bit to
type Group string

// GroupRoomAttribute collects room attribute flags
const GroupRoomAttribute Group = "acr"

// Filter is one registered search filter
type Filter struct {
	Key   string // registry key, matched case-insensitively
	Label string // display label on the site
	Group Group
	Bit   uint // 1-based bit position inside the group mask
}

// Mask returns the filter's contribution to its group mask
func (f Filter) Mask() int64 {
	return 1 << (f.Bit - 1)
}

var registry = []Filter{
	{Key: "CLUB_FLOOR", Label: "クラブフロア", Group: GroupRoomAttribute, Bit: 20},
	{Key: "NO_SMOKING", Label: "禁煙", Group: GroupRoomAttribute, Bit: 21},
}

// UnknownFilterError is returned for a name missing from the registry
type UnknownFilterError struct {
	Name string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("unknown filter name: %s", e.Name)
}

// Lookup finds a filter by registry key or site label, ignoring case
func Lookup(name string) (Filter, error) {
	trimmed := strings.TrimSpace(name)
	for _, f := range registry {
		if strings.EqualFold(trimmed, f.Key) || trimmed == f.Label {
			return f, nil
		}
	}
	return Filter{}, &UnknownFilterError{Name: name}
}

// Masks holds the combined bitmask per group
type Masks map[Group]int64

// Encode ORs the bits of every named filter into its group mask
func Encode(names []string) (Masks, error) {
	masks := make(Masks)
	for _, name := range names {
		f, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		masks[f.Group] |= f.Mask()
	}
	return masks, nil
}

// Apply writes each group mask as a decimal query parameter
func (m Masks) Apply(q url.Values) {
	groups := make([]string, 0, len(m))
	for g := range m {
		groups = append(groups, string(g))
	}
	sort.Strings(groups)

	for _, g := range groups {
		q.Set(g, strconv.FormatInt(m[Group(g)], 10))
	}
}

// Registered returns the registry keys
func Registered() []string {
	keys := make([]string, len(registry))
	for i, f := range registry {
		keys[i] = f.Key
	}
	return keys
}
