// Package store provides access to the three pre-existing relations that
// hold a room's state-group DAG.
package store

// StateGroupRow represents a row of the externally-owned state_groups table.
type StateGroupRow struct {
	ID      int64  `gorm:"column:id;primaryKey"`
	RoomID  string `gorm:"column:room_id"`
	EventID string `gorm:"column:event_id"`
}

// TableName returns the table name for StateGroupRow.
func (StateGroupRow) TableName() string {
	return "state_groups"
}

// StateGroupEdgeRow represents a row of the externally-owned
// state_group_edges table. A group has zero or one edge.
type StateGroupEdgeRow struct {
	StateGroup     int64 `gorm:"column:state_group;primaryKey"`
	PrevStateGroup int64 `gorm:"column:prev_state_group"`
}

// TableName returns the table name for StateGroupEdgeRow.
func (StateGroupEdgeRow) TableName() string {
	return "state_group_edges"
}

// StateGroupStateRow represents one delta entry of the externally-owned
// state_groups_state table.
type StateGroupStateRow struct {
	StateGroup int64  `gorm:"column:state_group"`
	RoomID     string `gorm:"column:room_id"`
	Type       string `gorm:"column:type"`
	StateKey   string `gorm:"column:state_key"`
	EventID    string `gorm:"column:event_id"`
}

// TableName returns the table name for StateGroupStateRow.
func (StateGroupStateRow) TableName() string {
	return "state_groups_state"
}

// roomRankRow is the scan target for the ranking query in Rank.
type roomRankRow struct {
	RoomID           string
	UncompressedRows int64
}
