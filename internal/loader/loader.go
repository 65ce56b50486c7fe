// Package loader materialises the state-group map a chunk driver hands to
// the compressor: a load window plus whatever predecessors are needed to
// resolve state outside it.
package loader

import (
	"context"

	"github.com/room-compactor/room-compactor/internal/store"
	"github.com/room-compactor/room-compactor/pkg/model"
)

// Window is the result of loading one chunk's worth of the DAG.
type Window struct {
	Entries model.StateGroupMap
	MaxID   model.StateGroupID
}

// Load implements the fix-point algorithm: load the window, then chase
// predecessors referenced by loaded entries but missing from the map until
// no new ids appear, then pre-load the heads of the resuming LevelInfo so
// the compressor can extend chains past the window boundary. Returns
// found=false iff the window itself is empty (the driver reports
// NoProgress in that case).
func Load(ctx context.Context, st store.Store, room model.RoomID, minExclusive *model.StateGroupID, count int, resumeLevels model.LevelInfo) (*Window, bool, error) {
	entries, maxID, found, err := st.LoadWindow(ctx, room, minExclusive, count)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	for id, entry := range entries {
		entry.InRange = true
		entries[id] = entry
	}

	if err := chasePredecessors(ctx, st, room, entries); err != nil {
		return nil, false, err
	}

	if err := preloadLevelHeads(ctx, st, room, entries, resumeLevels); err != nil {
		return nil, false, err
	}

	return &Window{Entries: entries, MaxID: maxID}, true, nil
}

// chasePredecessors repeatedly fetches predecessor ids referenced by
// entries already in the map but not themselves present, until a round
// adds nothing new. Every entry it adds has in_range = false: it exists
// only to resolve state, never to be rewritten.
func chasePredecessors(ctx context.Context, st store.Store, room model.RoomID, entries model.StateGroupMap) error {
	for {
		missing := missingPredecessors(entries)
		if len(missing) == 0 {
			return nil
		}

		fetched, err := st.LoadByIDs(ctx, room, missing)
		if err != nil {
			return err
		}

		for _, id := range missing {
			entry, ok := fetched[id]
			if !ok {
				entry = model.NewStateGroupEntry()
			}
			entry.InRange = false
			entries[id] = entry
		}
	}
}

// missingPredecessors returns the deduplicated set of predecessor ids
// referenced by entries in the map that are not themselves keys of the map.
func missingPredecessors(entries model.StateGroupMap) []model.StateGroupID {
	seen := make(map[model.StateGroupID]bool)
	var out []model.StateGroupID
	for _, entry := range entries {
		if entry.PrevStateGroup == nil {
			continue
		}
		prev := *entry.PrevStateGroup
		if _, ok := entries[prev]; ok {
			continue
		}
		if seen[prev] {
			continue
		}
		seen[prev] = true
		out = append(out, prev)
	}
	return out
}

// preloadLevelHeads fetches the current head of each non-empty level in
// resumeLevels that is not already in the map, so the compressor can chain
// new groups under them. Added entries are in_range = false; ids already
// present keep whatever in_range value they were loaded with.
func preloadLevelHeads(ctx context.Context, st store.Store, room model.RoomID, entries model.StateGroupMap, resumeLevels model.LevelInfo) error {
	var missing []model.StateGroupID
	for _, lvl := range resumeLevels {
		if lvl.Head == nil {
			continue
		}
		if _, ok := entries[*lvl.Head]; ok {
			continue
		}
		missing = append(missing, *lvl.Head)
	}
	if len(missing) == 0 {
		return nil
	}

	fetched, err := st.LoadByIDs(ctx, room, missing)
	if err != nil {
		return err
	}

	for _, id := range missing {
		entry, ok := fetched[id]
		if !ok {
			entry = model.NewStateGroupEntry()
		}
		entry.InRange = false
		entries[id] = entry
	}

	// The heads themselves may reference further predecessors outside the
	// window; chase those too.
	return chasePredecessors(ctx, st, room, entries)
}
