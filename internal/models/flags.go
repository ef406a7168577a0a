package models

import (
	"sort"
	"strings"
)

// FlagSet is a small set of short IMAP flag tokens (e.g. "\Seen",
// "\Flagged"). It persists as a sorted, comma-joined string rather than
// a JSON column, favoring plain TEXT columns over JSON blobs wherever
// the data is a short flat list.
type FlagSet []string

// ParseFlagSet splits a persisted comma-joined flag string back into a
// sorted FlagSet.
func ParseFlagSet(s string) FlagSet {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	fs := FlagSet(parts)
	fs.normalize()
	return fs
}

// String serializes the set as a sorted, comma-joined string.
func (fs FlagSet) String() string {
	cp := append(FlagSet(nil), fs...)
	cp.normalize()
	return strings.Join(cp, ",")
}

func (fs FlagSet) normalize() {
	sort.Strings(fs)
}

// Equal reports whether two flag sets contain the same tokens,
// regardless of original ordering. Used by the incremental-sync
// refresh path to decide whether a membership row actually changed
// before writing it.
func (fs FlagSet) Equal(other FlagSet) bool {
	if len(fs) != len(other) {
		return false
	}
	a := append(FlagSet(nil), fs...)
	b := append(FlagSet(nil), other...)
	a.normalize()
	b.normalize()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
