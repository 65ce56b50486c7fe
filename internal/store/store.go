package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/room-compactor/room-compactor/pkg/errors"
	"github.com/room-compactor/room-compactor/pkg/model"
)

// Store reads and writes the three externally-owned relations that hold a
// room's state-group DAG.
type Store interface {
	// LoadWindow returns the lowest count groups belonging to room with id
	// strictly greater than minExclusive (or all groups when minExclusive
	// is nil), along with the maximum id among them. found is false iff no
	// such groups exist.
	LoadWindow(ctx context.Context, room model.RoomID, minExclusive *model.StateGroupID, count int) (entries model.StateGroupMap, maxID model.StateGroupID, found bool, err error)

	// LoadByIDs fetches entries for exactly the given ids, tolerating ids
	// that appear in the edges relation but have no groups/deltas rows.
	LoadByIDs(ctx context.Context, room model.RoomID, ids []model.StateGroupID) (model.StateGroupMap, error)

	// ApplyDiff commits the given per-group changes in a single transaction.
	ApplyDiff(ctx context.Context, room model.RoomID, diff Diff) error

	// Rank returns up to limit rooms ordered by descending count of groups
	// with id greater than their last_compressed checkpoint (rooms with no
	// checkpoint count all their groups).
	Rank(ctx context.Context, limit int) ([]model.RoomRanking, error)
}

// GroupChange is the new (prev, delta) a single group is rewritten to.
type GroupChange struct {
	ID       model.StateGroupID
	NewPrev  *model.StateGroupID
	NewDelta model.Delta
}

// Diff is the set of per-group row changes the driver asks the store to
// apply after a commit decision.
type Diff struct {
	Changes []GroupChange
}

// GormStore implements Store against gorm.io/gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open *gorm.DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection so callers that also hold a
// checkpoint.GormStore on the same connection can fold a diff apply and a
// checkpoint write into a single transaction.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// LoadWindow implements Store.
func (s *GormStore) LoadWindow(ctx context.Context, room model.RoomID, minExclusive *model.StateGroupID, count int) (model.StateGroupMap, model.StateGroupID, bool, error) {
	var rows []StateGroupRow

	q := s.db.WithContext(ctx).
		Where("room_id = ?", string(room))
	if minExclusive != nil {
		q = q.Where("id > ?", int64(*minExclusive))
	}

	if err := q.Order("id ASC").Limit(count).Find(&rows).Error; err != nil {
		return nil, 0, false, apperrors.Wrap(apperrors.CodeLoadError, "failed to load window", err)
	}

	if len(rows) == 0 {
		return nil, 0, false, nil
	}

	ids := make([]model.StateGroupID, len(rows))
	maxID := model.StateGroupID(rows[0].ID)
	for i, r := range rows {
		ids[i] = model.StateGroupID(r.ID)
		if model.StateGroupID(r.ID) > maxID {
			maxID = model.StateGroupID(r.ID)
		}
	}

	entries, err := s.loadEntries(ctx, room, ids)
	if err != nil {
		return nil, 0, false, err
	}

	return entries, maxID, true, nil
}

// LoadByIDs implements Store.
func (s *GormStore) LoadByIDs(ctx context.Context, room model.RoomID, ids []model.StateGroupID) (model.StateGroupMap, error) {
	if len(ids) == 0 {
		return model.StateGroupMap{}, nil
	}
	entries, err := s.loadEntries(ctx, room, ids)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLoadError, "failed to load ids", err)
	}
	return entries, nil
}

// loadEntries fetches edges and delta rows for exactly the given ids. A
// group with no edge row is treated as having no predecessor; a group with
// no delta rows is treated as having an empty delta. Both cases arise when
// the edges/groups relations disagree with the deltas relation, which the
// contract in §4.A requires this store to tolerate.
func (s *GormStore) loadEntries(ctx context.Context, room model.RoomID, ids []model.StateGroupID) (model.StateGroupMap, error) {
	rawIDs := make([]int64, len(ids))
	for i, id := range ids {
		rawIDs[i] = int64(id)
	}

	var edges []StateGroupEdgeRow
	if err := s.db.WithContext(ctx).Where("state_group IN ?", rawIDs).Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("loading edges: %w", err)
	}
	prevByID := make(map[int64]int64, len(edges))
	for _, e := range edges {
		prevByID[e.StateGroup] = e.PrevStateGroup
	}

	var stateRows []StateGroupStateRow
	if err := s.db.WithContext(ctx).
		Where("room_id = ? AND state_group IN ?", string(room), rawIDs).
		Find(&stateRows).Error; err != nil {
		return nil, fmt.Errorf("loading delta rows: %w", err)
	}

	out := make(model.StateGroupMap, len(ids))
	for _, id := range ids {
		out[id] = model.NewStateGroupEntry()
	}

	for id := range out {
		if prev, ok := prevByID[int64(id)]; ok {
			p := model.StateGroupID(prev)
			entry := out[id]
			entry.PrevStateGroup = &p
			out[id] = entry
		}
	}

	for _, row := range stateRows {
		id := model.StateGroupID(row.StateGroup)
		entry, ok := out[id]
		if !ok {
			continue
		}
		entry.StateMap[model.StateKey{Type: row.Type, Key: row.StateKey}] = model.EventID(row.EventID)
		out[id] = entry
	}

	return out, nil
}

// ApplyDiff implements Store. Every group mentioned in the diff has its
// edge row and its delta rows replaced inside one transaction; parameter
// binding is used throughout so room/event ids never reach raw SQL text.
func (s *GormStore) ApplyDiff(ctx context.Context, room model.RoomID, diff Diff) error {
	if len(diff.Changes) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ch := range diff.Changes {
			if ch.NewPrev == nil {
				if err := tx.Where("state_group = ?", int64(ch.ID)).Delete(&StateGroupEdgeRow{}).Error; err != nil {
					return fmt.Errorf("clearing edge for %d: %w", ch.ID, err)
				}
			} else {
				edge := StateGroupEdgeRow{StateGroup: int64(ch.ID), PrevStateGroup: int64(*ch.NewPrev)}
				if err := tx.Save(&edge).Error; err != nil {
					return fmt.Errorf("writing edge for %d: %w", ch.ID, err)
				}
			}

			if err := tx.Where("room_id = ? AND state_group = ?", string(room), int64(ch.ID)).
				Delete(&StateGroupStateRow{}).Error; err != nil {
				return fmt.Errorf("clearing delta rows for %d: %w", ch.ID, err)
			}

			for key, eventID := range ch.NewDelta {
				row := StateGroupStateRow{
					StateGroup: int64(ch.ID),
					RoomID:     string(room),
					Type:       key.Type,
					StateKey:   key.Key,
					EventID:    string(eventID),
				}
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("writing delta row for %d: %w", ch.ID, err)
				}
			}
		}
		return nil
	})

	if err != nil {
		return apperrors.Wrap(apperrors.CodeWriteError, "failed to apply diff", err)
	}
	return nil
}

// Rank implements Store. Rooms with no checkpoint progress row count all
// their groups as uncompressed.
func (s *GormStore) Rank(ctx context.Context, limit int) ([]model.RoomRanking, error) {
	var rows []roomRankRow

	err := s.db.WithContext(ctx).Raw(`
		SELECT g.room_id AS room_id, COUNT(*) AS uncompressed_rows
		FROM state_groups g
		LEFT JOIN state_compressor_progress p ON p.room_id = g.room_id
		WHERE p.last_compressed IS NULL OR g.id > p.last_compressed
		GROUP BY g.room_id
		ORDER BY uncompressed_rows DESC
		LIMIT ?
	`, limit).Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLoadError, "failed to rank rooms", err)
	}

	out := make([]model.RoomRanking, len(rows))
	for i, r := range rows {
		out[i] = model.RoomRanking{RoomID: model.RoomID(r.RoomID), UncompressedRows: r.UncompressedRows}
	}
	return out, nil
}
