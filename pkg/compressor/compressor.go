// Package compressor implements the pure, in-memory state-group
// recompression algorithm. It performs no I/O: given a loaded map of
// groups and a starting level structure it returns a rewritten map and
// the level structure as it stood after the last group was processed.
package compressor

import (
	"sort"

	"github.com/room-compactor/room-compactor/pkg/model"
)

// Result is the outcome of running Compress over one window of groups.
type Result struct {
	Map         model.StateGroupMap
	Levels      model.LevelInfo
	OldRowCount int
	NewRowCount int
}

// Compress runs the level-based recompression algorithm over m, processing
// the ids in inRangeIDs in ascending order. Entries in m whose id is not in
// inRangeIDs are copied into the result unchanged. levels is never mutated;
// Compress returns the new level state as part of Result.
//
// The returned map always has the same key set as m (P1 relies on this:
// every group that was loaded keeps an entry, so its resolved state can be
// recomputed and compared before and after).
func Compress(m model.StateGroupMap, levels model.LevelInfo, inRangeIDs []model.StateGroupID) Result {
	ids := make([]model.StateGroupID, len(inRangeIDs))
	copy(ids, inRangeIDs)
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	out := make(model.StateGroupMap, len(m))
	for id, entry := range m {
		out[id] = entry
	}

	lv := levels.Clone()
	oldRows, newRows := 0, 0

	for _, id := range ids {
		entry := out[id]
		oldRows += len(entry.StateMap)

		resolved := resolvedState(out, id)

		allFull := levelsFull(lv)

		var target int
		var newPrev *model.StateGroupID
		if allFull {
			// Resolved open question: the bottom level absorbs overflow
			// rather than the deepest one. G is attached under level 1's
			// existing head and nothing is reset.
			target = 0
			newPrev = lv[0].Head
		} else {
			target = selectLevel(lv)
			if target > 0 {
				for j := 0; j < target; j++ {
					lv[j] = model.Level{MaxLength: lv[j].MaxLength}
				}
			}
			newPrev = newPredecessor(lv, target)
		}

		var parentResolved model.Delta
		if newPrev != nil {
			parentResolved = resolvedState(out, *newPrev)
		}
		newDelta := diffState(resolved, parentResolved)

		newEntry := model.StateGroupEntry{
			PrevStateGroup: newPrev,
			StateMap:       newDelta,
			InRange:        true,
		}

		if newEntry.Equal(entry) {
			newEntry = entry
		}

		out[id] = newEntry
		newRows += len(newEntry.StateMap)

		head := id
		lv[target].Head = &head
		if !allFull && lv[target].CurrentLength < lv[target].MaxLength {
			lv[target].CurrentLength++
		}
	}

	return Result{Map: out, Levels: lv, OldRowCount: oldRows, NewRowCount: newRows}
}

// selectLevel finds the smallest level index with room. If every level is
// full, level 0 (the most granular) is returned: the resolved open
// question in this implementation is that the bottom level absorbs
// overflow rather than the deepest level, matching the documented policy.
func selectLevel(lv model.LevelInfo) int {
	for i, l := range lv {
		if l.CurrentLength < l.MaxLength {
			return i
		}
	}
	return 0
}

// newPredecessor returns the head of the highest (coarsest) non-empty
// level strictly above target, or nil if none exists.
func newPredecessor(lv model.LevelInfo, target int) *model.StateGroupID {
	for i := len(lv) - 1; i > target; i-- {
		if !lv[i].Empty() {
			id := *lv[i].Head
			return &id
		}
	}
	return nil
}

// levelsFull reports whether every level has reached its maximum length.
func levelsFull(lv model.LevelInfo) bool {
	for _, l := range lv {
		if !l.Full() {
			return false
		}
	}
	return len(lv) > 0
}

// resolvedState folds the delta chain for id through m, starting from the
// root and overwriting with each successive delta. Returns an empty,
// non-nil Delta for an id with no entry (used as the "no predecessor"
// base case).
func resolvedState(m model.StateGroupMap, id model.StateGroupID) model.Delta {
	entry, ok := m[id]
	if !ok {
		return model.Delta{}
	}

	var chain []model.StateGroupEntry
	seen := make(map[model.StateGroupID]bool)
	cur, curID := entry, id
	for {
		chain = append(chain, cur)
		seen[curID] = true
		if cur.PrevStateGroup == nil {
			break
		}
		nextID := *cur.PrevStateGroup
		if seen[nextID] {
			break
		}
		next, ok := m[nextID]
		if !ok {
			break
		}
		cur, curID = next, nextID
	}

	out := make(model.Delta)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].StateMap {
			out[k] = v
		}
	}
	return out
}

// diffState returns the subset of child not already present with the same
// value in parent: keys shared with parent and equal are dropped, the
// rest are kept.
func diffState(child, parent model.Delta) model.Delta {
	out := make(model.Delta)
	for k, v := range child {
		if pv, ok := parent[k]; ok && pv == v {
			continue
		}
		out[k] = v
	}
	return out
}

// RowCount sums the delta sizes of every entry in m.
func RowCount(m model.StateGroupMap) int {
	n := 0
	for _, e := range m {
		n += len(e.StateMap)
	}
	return n
}
