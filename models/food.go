package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type FoodStatus string

const (
	FoodAvailable   FoodStatus = "Available"
	FoodUnavailable FoodStatus = "Unavailable"
)

type Food struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Category    string          `gorm:"type:varchar(100)" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	Quantity    int             `gorm:"not null;default:0" json:"quantity"`
	Status      FoodStatus      `gorm:"type:varchar(20);not null;default:'Available'" json:"status"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StockMovement records an applied stock delta so retried adjustments with the
// same reference are not applied twice.
type StockMovement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FoodID    uint      `gorm:"not null;index" json:"food_id"`
	Delta     int       `gorm:"not null" json:"delta"`
	Reference string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
