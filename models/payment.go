package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is the finalized bill for a reservation.
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PaymentCode     string          `gorm:"type:varchar(10);uniqueIndex;not null" json:"payment_code"`
	OrderID         *uint           `json:"order_id"`
	ReservationID   uint            `gorm:"not null;index" json:"reservation_id"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(10);not null" json:"payment_method"`
	OriginalAmount  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"original_amount"`
	DiscountID      *uint           `json:"discount_id"`
	Discount        *Discount       `gorm:"foreignKey:DiscountID" json:"discount,omitempty"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"discount_amount"`
	TaxPercentage   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_percentage"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"tax_amount"`
	DepositAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"deposit_amount"`
	FinalAmount     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"final_amount"`
	Status          PaymentStatus   `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	StatusHistory   []StatusEntry   `gorm:"type:text;serializer:json" json:"status_history"`
	CreatedBy       uint            `json:"created_by"`
	TransactionInfo string          `gorm:"type:text" json:"transaction_info"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p *Payment) Transition(next PaymentStatus, at time.Time) bool {
	if !p.Status.CanTransitionTo(next) {
		return false
	}
	p.Status = next
	p.StatusHistory = append(p.StatusHistory, StatusEntry{Status: string(next), ChangedAt: at})
	return true
}
