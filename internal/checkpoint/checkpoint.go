package checkpoint

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/room-compactor/room-compactor/pkg/errors"
	"github.com/room-compactor/room-compactor/pkg/model"
)

// Store reads and writes the per-room continuation.
type Store interface {
	// Read returns the persisted continuation for room, and found=false
	// iff no levels rows exist for that room.
	Read(ctx context.Context, room model.RoomID) (cont model.Continuation, found bool, err error)

	// Write atomically replaces all levels rows and the progress row for
	// room in one transaction.
	Write(ctx context.Context, room model.RoomID, cont model.Continuation) error

	// EnsureSchema idempotently creates the two owned relations.
	EnsureSchema(ctx context.Context) error
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
// store.GormStore on the same connection can fold a diff apply and a
// checkpoint write into a single transaction.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// EnsureSchema implements Store.
func (s *GormStore) EnsureSchema(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&LevelRow{}, &ProgressRow{}); err != nil {
		return apperrors.Wrap(apperrors.CodeConnectError, "failed to ensure checkpoint schema", err)
	}
	return nil
}

// Read implements Store. A row-count mismatch, a gap, a duplicate
// level_num, or an I1/I2 violation is reported as CodeSchemaCorruption —
// a fatal, non-retriable error for that room (spec §7).
func (s *GormStore) Read(ctx context.Context, room model.RoomID) (model.Continuation, bool, error) {
	var levelRows []LevelRow
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", string(room)).
		Order("level_num ASC").
		Find(&levelRows).Error; err != nil {
		return model.Continuation{}, false, apperrors.Wrap(apperrors.CodeLoadError, "failed to read levels", err)
	}

	if len(levelRows) == 0 {
		return model.Continuation{}, false, nil
	}

	levels, err := validateLevelRows(room, levelRows)
	if err != nil {
		return model.Continuation{}, false, err
	}

	var progress ProgressRow
	err = s.db.WithContext(ctx).Where("room_id = ?", string(room)).First(&progress).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.Continuation{}, false, apperrors.New(
				apperrors.CodeSchemaCorruption,
				fmt.Sprintf("room %s has levels rows but no progress row", room),
			)
		}
		return model.Continuation{}, false, apperrors.Wrap(apperrors.CodeLoadError, "failed to read progress", err)
	}

	return model.Continuation{
		LastCompressedGroup: model.StateGroupID(progress.LastCompressed),
		Levels:              levels,
	}, true, nil
}

// validateLevelRows checks I1/I2/I3 against the rows as persisted and
// converts them into a dense 1-indexed LevelInfo.
func validateLevelRows(room model.RoomID, rows []LevelRow) (model.LevelInfo, error) {
	levels := make(model.LevelInfo, len(rows))
	seen := make(map[int]bool, len(rows))

	for _, row := range rows {
		if row.LevelNum < 1 || row.LevelNum > len(rows) {
			return nil, apperrors.New(
				apperrors.CodeSchemaCorruption,
				fmt.Sprintf("room %s: level_num %d out of dense 1..%d range", room, row.LevelNum, len(rows)),
			)
		}
		if seen[row.LevelNum] {
			return nil, apperrors.New(
				apperrors.CodeSchemaCorruption,
				fmt.Sprintf("room %s: duplicate level_num %d", room, row.LevelNum),
			)
		}
		seen[row.LevelNum] = true

		if row.CurrentLength < 0 || row.CurrentLength > row.MaxSize {
			return nil, apperrors.New(
				apperrors.CodeSchemaCorruption,
				fmt.Sprintf("room %s: level %d violates current_length <= max_size (I1)", room, row.LevelNum),
			)
		}
		if (row.CurrentLength == 0) != (row.CurrentHead == nil) {
			return nil, apperrors.New(
				apperrors.CodeSchemaCorruption,
				fmt.Sprintf("room %s: level %d violates current_length==0 <-> head==None (I2)", room, row.LevelNum),
			)
		}

		lvl := model.Level{MaxLength: row.MaxSize, CurrentLength: row.CurrentLength}
		if row.CurrentHead != nil {
			h := model.StateGroupID(*row.CurrentHead)
			lvl.Head = &h
		}
		levels[row.LevelNum-1] = lvl
	}

	for i := 1; i <= len(rows); i++ {
		if !seen[i] {
			return nil, apperrors.New(
				apperrors.CodeSchemaCorruption,
				fmt.Sprintf("room %s: missing level_num %d (I3 gap)", room, i),
			)
		}
	}

	return levels, nil
}

// Write implements Store.
func (s *GormStore) Write(ctx context.Context, room model.RoomID, cont model.Continuation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", string(room)).Delete(&LevelRow{}).Error; err != nil {
			return fmt.Errorf("clearing levels: %w", err)
		}

		for i, lvl := range cont.Levels {
			row := LevelRow{
				RoomID:        string(room),
				LevelNum:      i + 1,
				MaxSize:       lvl.MaxLength,
				CurrentLength: lvl.CurrentLength,
			}
			if lvl.Head != nil {
				h := int64(*lvl.Head)
				row.CurrentHead = &h
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("writing level %d: %w", i+1, err)
			}
		}

		progress := ProgressRow{RoomID: string(room), LastCompressed: int64(cont.LastCompressedGroup)}
		if err := tx.Save(&progress).Error; err != nil {
			return fmt.Errorf("writing progress: %w", err)
		}

		return nil
	})
}
