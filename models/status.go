package models

import (
	"slices"
	"time"
)

// ReservationStatus is the lifecycle of a booking.
type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "Pending"
	ReservationArrived  ReservationStatus = "Arrived"
	ReservationCanceled ReservationStatus = "Canceled"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:  {ReservationArrived, ReservationCanceled},
	ReservationArrived:  {ReservationCanceled},
	ReservationCanceled: {},
}

func (s ReservationStatus) Valid() bool {
	_, ok := reservationTransitions[s]
	return ok
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	return slices.Contains(reservationTransitions[s], next)
}

func (s ReservationStatus) IsTerminal() bool {
	return s.Valid() && len(reservationTransitions[s]) == 0
}

// TableSlotStatus is the state of one TableHistory occupancy claim.
type TableSlotStatus string

const (
	TableSlotPending     TableSlotStatus = "Pending"
	TableSlotOccupied    TableSlotStatus = "Occupied"
	TableSlotAvailable   TableSlotStatus = "Available"
	TableSlotUnavailable TableSlotStatus = "Unavailable"
)

// Blocking reports whether a claim in this state keeps the table busy.
func (s TableSlotStatus) Blocking() bool {
	return s == TableSlotPending || s == TableSlotOccupied || s == TableSlotUnavailable
}

type OrderStatus string

const (
	OrderServing   OrderStatus = "Serving"
	OrderCompleted OrderStatus = "Completed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderServing:   {OrderCompleted},
	OrderCompleted: {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

type OrderItemStatus string

const (
	ItemPending      OrderItemStatus = "Pending"
	ItemPreparing    OrderItemStatus = "Preparing"
	ItemReadyToServe OrderItemStatus = "Ready_to_serve"
	ItemServed       OrderItemStatus = "Served"
	ItemCancelled    OrderItemStatus = "Cancelled"
)

// orderItemTransitions is the only authority on item moves. There is no
// ordinal rollback check: Ready_to_serve and Served can never be cancelled.
var orderItemTransitions = map[OrderItemStatus][]OrderItemStatus{
	ItemPending:      {ItemPreparing, ItemCancelled},
	ItemPreparing:    {ItemReadyToServe, ItemCancelled},
	ItemReadyToServe: {ItemServed},
	ItemServed:       {},
	ItemCancelled:    {},
}

func (s OrderItemStatus) Valid() bool {
	_, ok := orderItemTransitions[s]
	return ok
}

func (s OrderItemStatus) CanTransitionTo(next OrderItemStatus) bool {
	return slices.Contains(orderItemTransitions[s], next)
}

func (s OrderItemStatus) IsTerminal() bool {
	return s.Valid() && len(orderItemTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentCancelled PaymentStatus = "Cancelled"
	PaymentRefunded  PaymentStatus = "Refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentCompleted: {PaymentRefunded},
	PaymentFailed:    {},
	PaymentCancelled: {},
	PaymentRefunded:  {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return slices.Contains(paymentTransitions[s], next)
}

// Live reports whether the payment still counts as the reservation's bill.
func (s PaymentStatus) Live() bool {
	return s == PaymentPending || s == PaymentCompleted
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "Cash"
	PaymentMomo PaymentMethod = "Momo"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentMomo
}

// StatusEntry is one element of a status history array.
type StatusEntry struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}
