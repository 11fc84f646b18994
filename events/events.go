// Package events publishes state transitions to interested listeners.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/yeremiapane/restaurant-platform/utils"
)

const (
	EntityReservation  = "reservation"
	EntityTableHistory = "table_history"
	EntityOrder        = "order"
	EntityOrderItem    = "order_item"
	EntityPayment      = "payment"
	EntityDiscount     = "discount"
	EntityFood         = "food"
	EntityTable        = "table"
)

const (
	Created       = "created"
	StatusChanged = "status_changed"
	Assigned      = "assigned"
	Unassigned    = "unassigned"
	Deleted       = "deleted"
	StockFlagged  = "stock_flagged"
	StockSettled  = "stock_reconciled"
)

type Event struct {
	Entity string      `json:"entity"`
	Name   string      `json:"event"`
	ID     uint        `json:"id"`
	From   string      `json:"from,omitempty"`
	To     string      `json:"to,omitempty"`
	At     time.Time   `json:"at"`
	Data   interface{} `json:"data,omitempty"`
}

// Subject is the NATS subject, restaurant.<entity>.<event>.
func (e Event) Subject() string {
	return fmt.Sprintf("restaurant.%s.%s", e.Entity, e.Name)
}

func Transition(entity string, id uint, from, to string) Event {
	return Event{Entity: entity, Name: StatusChanged, ID: id, From: from, To: to, At: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit stamps e with the current time when At is unset, publishes it and only
// logs a failure. Events never fail a transition that has already been
// committed.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := p.Publish(ctx, e); err != nil {
		utils.ErrorLogger.WithFields(map[string]interface{}{
			"subject": e.Subject(),
			"id":      e.ID,
		}).Warnf("publish event: %v", err)
	}
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("restaurant-platform"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(e.Subject())
	msg.Data = payload
	if id := utils.RequestIDFrom(ctx); id != "" {
		msg.Header.Set(utils.RequestIDHeader, id)
	}
	return p.conn.PublishMsg(msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// Multi fans an event out to every publisher and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Subjects lists the subjects seen so far, in order.
func (r *Recorder) Subjects() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Subject())
	}
	return out
}
