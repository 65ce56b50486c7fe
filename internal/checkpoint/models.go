// Package checkpoint persists the per-room continuation (level structure
// plus last-compressed marker) that makes the chunk driver resumable.
package checkpoint

// LevelRow is a row of the state_compressor_state table owned by this
// system.
type LevelRow struct {
	RoomID        string `gorm:"column:room_id;primaryKey"`
	LevelNum      int    `gorm:"column:level_num;primaryKey"`
	MaxSize       int    `gorm:"column:max_size"`
	CurrentLength int    `gorm:"column:current_length"`
	CurrentHead   *int64 `gorm:"column:current_head"`
}

// TableName returns the table name for LevelRow.
func (LevelRow) TableName() string {
	return "state_compressor_state"
}

// ProgressRow is a row of the state_compressor_progress table owned by this
// system.
type ProgressRow struct {
	RoomID         string `gorm:"column:room_id;primaryKey"`
	LastCompressed int64  `gorm:"column:last_compressed"`
}

// TableName returns the table name for ProgressRow.
func (ProgressRow) TableName() string {
	return "state_compressor_progress"
}
