package domain

import (
	"slices"
	"strings"
)

// Change is the difference of one variable between two snapshots.
// A missing side is Unset.
type Change struct {
	Key string `json:"key"`
	Old Value  `json:"old,omitempty"`
	New Value  `json:"new,omitempty"`
}

// Added reports whether the variable is only in the newer snapshot.
func (c Change) Added() bool { return !c.Old.IsSet() && c.New.IsSet() }

// Removed reports whether the variable is only in the older snapshot.
func (c Change) Removed() bool { return c.Old.IsSet() && !c.New.IsSet() }

// Diff lists the variables whose values differ between oldSnap and newSnap, ordered by key.
// It returns nil when both hold the same values.
func Diff(oldSnap, newSnap Snapshot) []Change {
	var changes []Change
	for key, nv := range newSnap.values {
		if ov := oldSnap.values[key]; ov != nv {
			changes = append(changes, Change{Key: key, Old: ov, New: nv})
		}
	}
	for key, ov := range oldSnap.values {
		if _, ok := newSnap.values[key]; !ok {
			changes = append(changes, Change{Key: key, Old: ov})
		}
	}
	slices.SortFunc(changes, func(a, b Change) int { return strings.Compare(a.Key, b.Key) })
	return changes
}
