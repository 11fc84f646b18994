package models

import "time"

type TableType string

const (
	TableNormal TableType = "Normal"
	TableVIP    TableType = "VIP"
)

func (t TableType) Valid() bool {
	return t == TableNormal || t == TableVIP
}

type Table struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Capacity  int       `gorm:"not null" json:"capacity"`
	Type      TableType `gorm:"type:varchar(10);not null;default:'Normal'" json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Status is derived from TableHistory rows for a queried window.
	Status TableSlotStatus `gorm:"-" json:"status,omitempty"`
}
