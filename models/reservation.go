package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Reservation struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	CustomerID     *uint             `gorm:"index" json:"customer_id"`
	Customer       *Customer         `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Quantity       int               `gorm:"not null" json:"quantity"`
	CheckInTime    time.Time         `gorm:"not null;index" json:"check_in_time"`
	Note           string            `gorm:"type:text" json:"note"`
	IsWalkIn       bool              `gorm:"not null;default:false" json:"is_walk_in"`
	Deposit        decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"deposit"`
	Status         ReservationStatus `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	StatusHistory  []StatusEntry     `gorm:"type:text;serializer:json" json:"status_history"`
	TableID        *uint             `json:"table_id"`
	TableHistories []TableHistory    `gorm:"foreignKey:ReservationID" json:"table_history"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Transition moves the reservation along its flow table and records history.
func (r *Reservation) Transition(next ReservationStatus, at time.Time) bool {
	if !r.Status.CanTransitionTo(next) {
		return false
	}
	r.Status = next
	r.StatusHistory = append(r.StatusHistory, StatusEntry{Status: string(next), ChangedAt: at})
	return true
}

// Window returns the occupancy window implied by the check-in time.
func (r *Reservation) Window(slot time.Duration) (time.Time, time.Time) {
	return r.CheckInTime, r.CheckInTime.Add(slot)
}
