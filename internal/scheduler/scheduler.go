// Package scheduler ranks rooms by uncompressed row count and drives the
// chunk driver across them, one chunk at a time, until each reports no
// progress. Unlike a typical task scheduler this one is deliberately
// single-threaded: the core holds at most one database session at a time
// and performs no internal parallelism (§5 of the concurrency model).
package scheduler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/room-compactor/room-compactor/internal/checkpoint"
	"github.com/room-compactor/room-compactor/internal/driver"
	"github.com/room-compactor/room-compactor/internal/store"
	"github.com/room-compactor/room-compactor/pkg/model"
	"github.com/room-compactor/room-compactor/pkg/telemetry"
	"github.com/room-compactor/room-compactor/pkg/utils"
)

var tracer = otel.Tracer("room-compactor")

// ChunkDriver is the subset of driver.Driver the scheduler depends on.
type ChunkDriver interface {
	RunChunk(ctx context.Context, room model.RoomID, chunkSize int) (model.ChunkStats, bool, error)
}

// Scheduler drives the chunk driver across the most uncompressed rooms in
// a backing store.
type Scheduler struct {
	Store       store.Store
	Checkpoints checkpoint.Store
	Driver      ChunkDriver
	Logger      utils.Logger
	Metrics     *telemetry.Metrics
}

// New builds a Scheduler from a Store and its paired checkpoint Store,
// wiring a driver.Driver with the given default levels.
func New(st store.Store, cp checkpoint.Store, defaultLevels []int) *Scheduler {
	d := driver.New(st, cp, defaultLevels)
	return &Scheduler{
		Store:       st,
		Checkpoints: cp,
		Driver:      d,
		Logger:      &utils.NullLogger{},
		Metrics:     telemetry.NewNoopMetrics(),
	}
}

// CompressLargest implements §4.F: rank up to n rooms by uncompressed row
// count once, then drive each to NoProgress in ranked order before moving
// to the next. The ranking is not refreshed mid-run.
func (s *Scheduler) CompressLargest(ctx context.Context, n int, chunkSize int) ([]model.RoomSummary, error) {
	ctx, span := tracer.Start(ctx, "room-compactor.scheduler_pass")
	defer span.End()

	if err := s.Checkpoints.EnsureSchema(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ranked, err := s.Store.Rank(ctx, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("scheduler.rooms_ranked", len(ranked)))

	summaries := make([]model.RoomSummary, 0, len(ranked))
	for _, ranking := range ranked {
		summary, err := s.drainRoom(ctx, ranking.RoomID, chunkSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return summaries, err
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// drainRoom drives the chunk driver against room until it reports no
// progress, accumulating stats into one summary.
func (s *Scheduler) drainRoom(ctx context.Context, room model.RoomID, chunkSize int) (model.RoomSummary, error) {
	summary := model.RoomSummary{RoomID: room}
	roomLogger := s.Logger.WithField("room_id", room)

	for {
		stats, progressed, err := s.Driver.RunChunk(ctx, room, chunkSize)
		if err != nil {
			return summary, err
		}
		if !progressed {
			if summary.ChunksCommitted > 0 {
				s.Metrics.RoomsCompressed.Inc()
			}
			roomLogger.Info("compressed: rows_saved=%d chunks_committed=%d chunks_skipped=%d",
				summary.RowsSaved, summary.ChunksCommitted, summary.ChunksSkipped)
			return summary, nil
		}

		if stats.Committed {
			summary.ChunksCommitted++
			summary.RowsSaved += int64(stats.OldRowCount - stats.NewRowCount)
			s.Metrics.RowsSaved.Add(float64(stats.OldRowCount - stats.NewRowCount))
		} else {
			summary.ChunksSkipped++
			s.Metrics.ChunksSkipped.Inc()
		}
	}
}
