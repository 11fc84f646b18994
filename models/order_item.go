package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	OrderID       *uint           `gorm:"index" json:"order_id"`
	FoodID        uint            `gorm:"not null;index" json:"food_id"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	Note          string          `gorm:"type:text" json:"note"`
	Price         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	Status        OrderItemStatus `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	StatusHistory []StatusEntry   `gorm:"type:text;serializer:json" json:"status_history"`

	NeedsStockReconciliation bool       `gorm:"not null;default:false;index" json:"needs_stock_reconciliation"`
	StockReconciledAt        *time.Time `json:"stock_reconciled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Food *Food `gorm:"-" json:"food,omitempty"`
}

func (i *OrderItem) Transition(next OrderItemStatus, at time.Time) bool {
	if !i.Status.CanTransitionTo(next) {
		return false
	}
	i.Status = next
	i.StatusHistory = append(i.StatusHistory, StatusEntry{Status: string(next), ChangedAt: at})
	return true
}

// StockReference is the idempotency key used for this item's stock movement.
func (i *OrderItem) StockReference() string {
	return "order-item:" + uintToString(i.ID)
}
