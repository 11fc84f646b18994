package models

import "time"

type DiscountStatus string

const (
	DiscountActive   DiscountStatus = "Active"
	DiscountInactive DiscountStatus = "Inactive"
)

type Discount struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	DiscountCode       string         `gorm:"type:varchar(5);uniqueIndex;not null" json:"discount_code"`
	DiscountPercentage int            `gorm:"not null" json:"discount_percentage"`
	Quantity           int            `gorm:"not null" json:"quantity"`
	UsedCount          int            `gorm:"not null;default:0" json:"used_count"`
	Status             DiscountStatus `gorm:"type:varchar(10);not null;default:'Active'" json:"status"`
	CreatedBy          uint           `json:"created_by"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (d *Discount) IsValid() bool {
	return d.Status == DiscountActive && d.UsedCount < d.Quantity
}
