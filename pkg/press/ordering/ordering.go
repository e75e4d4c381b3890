// Package ordering implements atomic bulk permutation of a uniquely-keyed
// ordered set. Rewriting positions one by one can transiently collide with
// another item's current position (swapping 1 and 2 fails on the first
// write), so a reorder runs in two phases inside one transaction: every item
// is first moved to a negative, offset-shifted placeholder disjoint from all
// real positions, then every item is written to its real position. No
// individual write ever violates the uniqueness constraint.
package ordering

import (
	"sort"

	"github.com/google/uuid"
)

// placeholderGap is added to the current maximum position when computing the
// placeholder offset, keeping placeholders clear of in-flight inserts.
const placeholderGap = 1000

// Write assigns one item a position.
type Write struct {
	ID       uuid.UUID
	Position int
}

// Plan is the full write sequence for one reorder. All Phase1 writes must be
// applied before any Phase2 write, within a single transaction.
type Plan struct {
	Phase1 []Write
	Phase2 []Write
}

// BuildPlan computes the two-phase write sequence that moves every item in
// want to its new position. maxPosition is the current maximum position in
// use across the whole collection (not just the items being moved).
//
// Placeholder positions are -(new + offset) with offset > maxPosition, so
// they are negative (disjoint from all real positions) and mutually distinct
// whenever the requested positions are.
func BuildPlan(maxPosition int, want map[uuid.UUID]int) Plan {
	offset := maxPosition + placeholderGap

	writes := make([]Write, 0, len(want))
	for id, pos := range want {
		writes = append(writes, Write{ID: id, Position: pos})
	}
	// Deterministic write order keeps transactions comparable across calls
	// and test output stable.
	sort.Slice(writes, func(i, j int) bool {
		if writes[i].Position != writes[j].Position {
			return writes[i].Position < writes[j].Position
		}
		return writes[i].ID.String() < writes[j].ID.String()
	})

	plan := Plan{
		Phase1: make([]Write, len(writes)),
		Phase2: writes,
	}
	for i, w := range writes {
		plan.Phase1[i] = Write{ID: w.ID, Position: -(w.Position + offset)}
	}
	return plan
}
