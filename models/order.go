package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ReservationID      uint            `gorm:"not null;index" json:"reservation_id"`
	TableID            *uint           `gorm:"index" json:"table_id"`
	UserID             uint            `gorm:"not null" json:"user_id"`
	OrderStatus        OrderStatus     `gorm:"type:varchar(20);not null;default:'Serving';index" json:"order_status"`
	OrderStatusHistory []StatusEntry   `gorm:"type:text;serializer:json" json:"order_status_history"`
	OrderItems         []OrderItem     `gorm:"foreignKey:OrderID" json:"order_items"`
	TotalPrice         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_price"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (o *Order) Transition(next OrderStatus, at time.Time) bool {
	if !o.OrderStatus.CanTransitionTo(next) {
		return false
	}
	o.OrderStatus = next
	o.OrderStatusHistory = append(o.OrderStatusHistory, StatusEntry{Status: string(next), ChangedAt: at})
	return true
}

// ServedTotal sums the price of served items only.
func ServedTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Status == ItemServed {
			total = total.Add(item.Price)
		}
	}
	return total
}

// AllItemsTerminal reports whether every item is Served or Cancelled.
func AllItemsTerminal(items []OrderItem) bool {
	for _, item := range items {
		if !item.Status.IsTerminal() {
			return false
		}
	}
	return true
}
