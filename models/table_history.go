package models

import "time"

// TableHistory is one (table, time window) occupancy claim made for a
// reservation. Rows that are not Available block their table for the window.
type TableHistory struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	ReservationID        uint            `gorm:"not null;index" json:"reservation_id"`
	TableID              uint            `gorm:"not null;index:idx_table_window" json:"table_id"`
	CheckInTime          time.Time       `gorm:"not null;index:idx_table_window" json:"check_in_time"`
	ExpectedCheckOutTime time.Time       `gorm:"not null" json:"expected_check_out_time"`
	AssignedTime         time.Time       `gorm:"not null" json:"assigned_time"`
	AssignedBy           *uint           `json:"assigned_by"`
	TableStatus          TableSlotStatus `gorm:"type:varchar(20);not null;default:'Pending'" json:"table_status"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
