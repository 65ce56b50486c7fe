// Package driver runs one chunk of compression for a room: read the
// continuation, load a window, run the compressor, commit or skip, and
// write the new continuation, all inside the atomicity contract required
// by the state machine Idle -> Loading -> Compressing -> {CommitOk,
// CommitSkip} -> CheckpointWrite -> Idle.
package driver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/room-compactor/room-compactor/internal/checkpoint"
	"github.com/room-compactor/room-compactor/internal/loader"
	"github.com/room-compactor/room-compactor/internal/store"
	"github.com/room-compactor/room-compactor/pkg/compressor"
	"github.com/room-compactor/room-compactor/pkg/model"
	"github.com/room-compactor/room-compactor/pkg/utils"
)

var tracer = otel.Tracer("room-compactor")

// Driver wires a checkpoint store, a DAG loader and the compressor core
// against a single state-map delta store.
type Driver struct {
	Store         store.Store
	Checkpoints   checkpoint.Store
	DefaultLevels []int
	Logger        utils.Logger
	Clock         utils.Clock
}

// New returns a Driver with sensible defaults for Logger and Clock.
func New(st store.Store, cp checkpoint.Store, defaultLevels []int) *Driver {
	return &Driver{
		Store:         st,
		Checkpoints:   cp,
		DefaultLevels: defaultLevels,
		Logger:        &utils.NullLogger{},
		Clock:         utils.NewRealClock(),
	}
}

// NoProgress sentinel. Not an error: it signals the room has nothing left
// to process in this chunk (either it has no more groups, or it never had
// any).
var NoProgress = &model.ChunkStats{Committed: false}

// RunChunk executes exactly one chunk for room, per §4.D of the component
// design: read continuation, load window, compress, growth-check, commit
// or skip, persist continuation. Returns (stats, progressed, error); when
// progressed is false the caller has reached NoProgress and must stop
// driving this room for the current invocation.
func (d *Driver) RunChunk(ctx context.Context, room model.RoomID, chunkSize int) (model.ChunkStats, bool, error) {
	ctx, span := tracer.Start(ctx, "room-compactor.chunk")
	defer span.End()
	span.SetAttributes(attribute.String("room.id", string(room)))

	timer := utils.NewChunkTimer(d.Clock, d.Logger)
	defer timer.PrintSummary()

	loadPhase := timer.Start(utils.PhaseLoad)
	cont, found, err := d.Checkpoints.Read(ctx, room)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.ChunkStats{}, false, err
	}

	var minExclusive *model.StateGroupID
	levels := model.NewLevelInfo(d.DefaultLevels)
	if found {
		last := cont.LastCompressedGroup
		minExclusive = &last
		levels = cont.Levels
	}

	win, ok, err := loader.Load(ctx, d.Store, room, minExclusive, chunkSize, levels)
	loadPhase.Stop()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.ChunkStats{}, false, err
	}
	if !ok {
		span.SetAttributes(attribute.Bool("room.no_progress", true))
		return *NoProgress, false, nil
	}

	span.SetAttributes(
		attribute.Int64("room.window.max_id", int64(win.MaxID)),
		attribute.Int("room.window.entries", len(win.Entries)),
	)

	inRange := make([]model.StateGroupID, 0, len(win.Entries))
	for id, entry := range win.Entries {
		if entry.InRange {
			inRange = append(inRange, id)
		}
	}

	compressPhase := timer.Start(utils.PhaseCompress)
	result := compressor.Compress(win.Entries, levels, inRange)
	compressPhase.Stop()

	commitPhase := timer.Start(utils.PhaseCommit)
	committed := result.NewRowCount <= result.OldRowCount

	stats := model.ChunkStats{
		OldRowCount:         result.OldRowCount,
		NewRowCount:         result.NewRowCount,
		LastCompressedGroup: win.MaxID,
	}

	var diff store.Diff
	if committed {
		diff = buildDiff(room, win.Entries, result.Map, inRange)
		stats.Committed = true
		stats.NewLevels = result.Levels
	} else {
		d.Logger.WithField("room_id", room).Warn("chunk rejected: new_row_count=%d > old_row_count=%d", result.NewRowCount, result.OldRowCount)
		stats.Committed = false
		stats.NewLevels = model.NewLevelInfo(d.DefaultLevels)
	}
	newCont := model.Continuation{LastCompressedGroup: stats.LastCompressedGroup, Levels: stats.NewLevels}

	if err := d.commit(ctx, room, diff, newCont); err != nil {
		commitPhase.Stop()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.ChunkStats{}, false, err
	}
	commitPhase.Stop()

	span.SetAttributes(
		attribute.Bool("room.committed", stats.Committed),
		attribute.Int("room.rows_saved", stats.OldRowCount-stats.NewRowCount),
	)

	return stats, true, nil
}

// gormBacked is implemented by a store.GormStore or checkpoint.GormStore
// wrapping an open connection.
type gormBacked interface {
	DB() *gorm.DB
}

// commit applies diff and writes cont. When the Store and the checkpoint
// Store share the same underlying connection, both happen inside one
// transaction, which is what makes seed scenario 5 (kill between commit
// and checkpoint write) impossible to observe: a crash before the
// transaction commits loses both; a crash after loses neither. Against a
// Store/checkpoint.Store pair that does not expose a shared connection
// (e.g. in unit tests using mocks), the two writes happen sequentially and
// a crash between them is possible — that configuration is for testing
// the component logic in isolation, never how the CLI wires things.
func (d *Driver) commit(ctx context.Context, room model.RoomID, diff store.Diff, cont model.Continuation) error {
	storeDB, storeOK := d.Store.(gormBacked)
	cpDB, cpOK := d.Checkpoints.(gormBacked)

	if storeOK && cpOK && storeDB.DB() == cpDB.DB() {
		return storeDB.DB().Transaction(func(tx *gorm.DB) error {
			txStore := store.NewGormStore(tx)
			if err := txStore.ApplyDiff(ctx, room, diff); err != nil {
				return err
			}
			txCheckpoints := checkpoint.NewGormStore(tx)
			return txCheckpoints.Write(ctx, room, cont)
		})
	}

	if err := d.Store.ApplyDiff(ctx, room, diff); err != nil {
		return err
	}
	return d.Checkpoints.Write(ctx, room, cont)
}

// buildDiff compares the old and new maps for the in-range ids and emits
// only the groups whose (prev, delta) actually changed — the shortcut
// preservation in §4.C guarantees unchanged groups compare Equal.
func buildDiff(room model.RoomID, oldMap, newMap model.StateGroupMap, inRange []model.StateGroupID) store.Diff {
	var diff store.Diff
	for _, id := range inRange {
		oldEntry := oldMap[id]
		newEntry := newMap[id]
		if oldEntry.Equal(newEntry) {
			continue
		}
		diff.Changes = append(diff.Changes, store.GroupChange{
			ID:       id,
			NewPrev:  newEntry.PrevStateGroup,
			NewDelta: newEntry.StateMap,
		})
	}
	return diff
}
