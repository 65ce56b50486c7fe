package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	apperrors "github.com/room-compactor/room-compactor/pkg/errors"
	"github.com/room-compactor/room-compactor/pkg/model"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	s := NewGormStore(db)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func head(id model.StateGroupID) *model.StateGroupID {
	return &id
}

func TestGormStore_Read_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.Read(context.Background(), model.RoomID("room1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGormStore_WriteThenRead_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := model.RoomID("room1")

	cont := model.Continuation{
		LastCompressedGroup: 42,
		Levels: model.LevelInfo{
			{MaxLength: 100, CurrentLength: 3, Head: head(40)},
			{MaxLength: 50, CurrentLength: 1, Head: head(41)},
			{MaxLength: 1, CurrentLength: 0},
		},
	}

	require.NoError(t, s.Write(ctx, room, cont))

	got, found, err := s.Read(ctx, room)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cont.LastCompressedGroup, got.LastCompressedGroup)
	require.Len(t, got.Levels, 3)
	assert.Equal(t, cont.Levels[0], got.Levels[0])
	assert.Equal(t, cont.Levels[1], got.Levels[1])
	assert.Nil(t, got.Levels[2].Head)
}

func TestGormStore_Write_ReplacesPriorLevels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := model.RoomID("room1")

	first := model.Continuation{
		LastCompressedGroup: 10,
		Levels: model.LevelInfo{
			{MaxLength: 100, CurrentLength: 2, Head: head(9)},
			{MaxLength: 50, CurrentLength: 2, Head: head(9)},
		},
	}
	require.NoError(t, s.Write(ctx, room, first))

	second := model.Continuation{
		LastCompressedGroup: 20,
		Levels: model.LevelInfo{
			{MaxLength: 100, CurrentLength: 1, Head: head(20)},
		},
	}
	require.NoError(t, s.Write(ctx, room, second))

	got, found, err := s.Read(ctx, room)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got.Levels, 1)
	assert.Equal(t, model.StateGroupID(20), *got.Levels[0].Head)
}

func TestGormStore_Read_RejectsGapInLevelNum(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := model.RoomID("room1")

	require.NoError(t, s.db.WithContext(ctx).Create(&LevelRow{
		RoomID: string(room), LevelNum: 1, MaxSize: 10,
	}).Error)
	require.NoError(t, s.db.WithContext(ctx).Create(&LevelRow{
		RoomID: string(room), LevelNum: 3, MaxSize: 10,
	}).Error)
	require.NoError(t, s.db.WithContext(ctx).Create(&ProgressRow{
		RoomID: string(room), LastCompressed: 5,
	}).Error)

	_, _, err := s.Read(ctx, room)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSchemaCorruption, apperrors.GetErrorCode(err))
}

func TestGormStore_Read_RejectsCurrentLengthAboveMax(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := model.RoomID("room1")

	h := int64(1)
	require.NoError(t, s.db.WithContext(ctx).Create(&LevelRow{
		RoomID: string(room), LevelNum: 1, MaxSize: 5, CurrentLength: 6, CurrentHead: &h,
	}).Error)
	require.NoError(t, s.db.WithContext(ctx).Create(&ProgressRow{
		RoomID: string(room), LastCompressed: 1,
	}).Error)

	_, _, err := s.Read(ctx, room)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSchemaCorruption, apperrors.GetErrorCode(err))
}

func TestGormStore_Read_RejectsHeadLengthMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := model.RoomID("room1")

	require.NoError(t, s.db.WithContext(ctx).Create(&LevelRow{
		RoomID: string(room), LevelNum: 1, MaxSize: 5, CurrentLength: 0, CurrentHead: nil,
	}).Error)
	require.NoError(t, s.db.WithContext(ctx).Exec(
		"UPDATE state_compressor_state SET current_length = 2 WHERE room_id = ? AND level_num = 1", string(room),
	).Error)
	require.NoError(t, s.db.WithContext(ctx).Create(&ProgressRow{
		RoomID: string(room), LastCompressed: 1,
	}).Error)

	_, _, err := s.Read(ctx, room)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSchemaCorruption, apperrors.GetErrorCode(err))
}

func TestGormStore_Read_RejectsMissingProgressRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := model.RoomID("room1")

	require.NoError(t, s.db.WithContext(ctx).Create(&LevelRow{
		RoomID: string(room), LevelNum: 1, MaxSize: 5,
	}).Error)

	_, _, err := s.Read(ctx, room)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSchemaCorruption, apperrors.GetErrorCode(err))
}

func TestGormStore_EnsureSchema_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()))
}
