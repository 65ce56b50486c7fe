// Package model defines the domain types shared by every component of the
// state-group compressor: the loaded DAG representation, the level
// structure that drives compression, and the per-room continuation that
// makes a run resumable.
package model

import "fmt"

// StateGroupID identifies a state group. It is assigned by the external
// chat server and is monotonically increasing within a room, though not
// necessarily gap-free.
type StateGroupID int64

// RoomID is an opaque, non-empty room identifier.
type RoomID string

// StateKey is the (type, key) pair that a Delta entry is keyed on.
type StateKey struct {
	Type string
	Key  string
}

// EventID is the short string identifying the event a StateKey currently
// resolves to.
type EventID string

// Delta maps StateKey to EventID. Insertion order is irrelevant and
// duplicate keys are impossible since it is a Go map.
type Delta map[StateKey]EventID

// Clone returns a shallow copy of the delta.
func (d Delta) Clone() Delta {
	if d == nil {
		return nil
	}
	out := make(Delta, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Equal reports whether two deltas contain exactly the same key/value pairs.
func (d Delta) Equal(other Delta) bool {
	if len(d) != len(other) {
		return false
	}
	for k, v := range d {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// StateGroupEntry is the loaded, transient representation of one state
// group: its predecessor, the delta against that predecessor, and whether
// it falls inside the current compression window.
type StateGroupEntry struct {
	PrevStateGroup *StateGroupID
	StateMap       Delta
	InRange        bool
}

// NewStateGroupEntry returns an entry with an empty, non-nil delta.
func NewStateGroupEntry() StateGroupEntry {
	return StateGroupEntry{StateMap: make(Delta)}
}

// Equal reports whether two entries have the same predecessor, delta
// contents and in_range flag. Used to detect no-op rewrites (§4.C
// shortcut preservation) and to diff old vs new maps (§4.D).
func (e StateGroupEntry) Equal(other StateGroupEntry) bool {
	if e.InRange != other.InRange {
		return false
	}
	if (e.PrevStateGroup == nil) != (other.PrevStateGroup == nil) {
		return false
	}
	if e.PrevStateGroup != nil && *e.PrevStateGroup != *other.PrevStateGroup {
		return false
	}
	return e.StateMap.Equal(other.StateMap)
}

// StateGroupMap is the loaded window plus whatever predecessors were
// needed to resolve state, keyed by group id.
type StateGroupMap map[StateGroupID]StateGroupEntry

// Level is one bounded-length slot of the compressor's target tree shape.
type Level struct {
	MaxLength     int
	CurrentLength int
	Head          *StateGroupID
}

// Empty reports whether the level currently holds no groups.
func (l Level) Empty() bool {
	return l.CurrentLength == 0
}

// Full reports whether the level has reached its configured maximum.
func (l Level) Full() bool {
	return l.CurrentLength >= l.MaxLength
}

// Clone returns a value copy of the level (Head is a pointer to an
// immutable id, so copying it is safe to share).
func (l Level) Clone() Level {
	return l
}

// LevelInfo is the ordered, 1-indexed sequence of Levels that defines a
// room's target tree shape. Index 0 of the slice is level 1, the most
// granular level.
type LevelInfo []Level

// Clone returns a deep-enough copy of the level sequence so that mutating
// the clone never affects the original (Level holds no mutable reference
// fields besides the Head pointer, which is never mutated in place).
func (li LevelInfo) Clone() LevelInfo {
	out := make(LevelInfo, len(li))
	copy(out, li)
	return out
}

// NewLevelInfo builds a LevelInfo with the given max lengths, all empty,
// in ascending level order (first entry = level 1, most granular).
func NewLevelInfo(maxLengths []int) LevelInfo {
	out := make(LevelInfo, len(maxLengths))
	for i, m := range maxLengths {
		out[i] = Level{MaxLength: m}
	}
	return out
}

func (li LevelInfo) String() string {
	return fmt.Sprintf("%+v", []Level(li))
}

// Continuation is the persisted, per-room pair that makes compression
// resumable and crash-safe: the id of the last group processed, and the
// level structure as it stood at that point.
type Continuation struct {
	LastCompressedGroup StateGroupID
	Levels              LevelInfo
}

// ChunkStats summarizes the outcome of one chunk driver invocation.
type ChunkStats struct {
	Committed           bool
	OldRowCount         int
	NewRowCount         int
	LastCompressedGroup StateGroupID
	NewLevels           LevelInfo
}

// RoomRanking is one row of the auto-scheduler's ranking query: a room and
// its count of groups not yet compressed.
type RoomRanking struct {
	RoomID          RoomID
	UncompressedRows int64
}

// RoomSummary is the per-room summary the auto-scheduler emits once it
// drops a room from its ranked list (NoProgress reached).
type RoomSummary struct {
	RoomID          RoomID
	RowsSaved       int64
	ChunksCommitted int
	ChunksSkipped   int
}
