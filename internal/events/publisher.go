// Package events publishes ledger changes for downstream consumers.
package events

import (
	"context"
	"time"
)

// Ledger event types
const (
	PointsCharged        = "points.charged"
	PointsChargePending  = "points.charge_pending"
	PointsChargeApproved = "points.charge_approved"
	PointsChargeRejected = "points.charge_rejected"
	PointsUsed           = "points.used"
	PointsRefunded       = "points.refunded"
	PointsExpired        = "points.expired"
)

// LedgerEvent is emitted after a ledger mutation has been committed.
type LedgerEvent struct {
	Type          string    `json:"event_type"`
	ClientID      string    `json:"client_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        int64     `json:"amount"`
	Balance       int64     `json:"balance"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers ledger events. Delivery is best effort: callers log
// failures and never roll back a committed ledger change because of them.
type Publisher interface {
	Publish(ctx context.Context, events ...LedgerEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ...LedgerEvent) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }

// Recorder keeps events in memory. Used by tests.
type Recorder struct {
	Events []LedgerEvent
}

func (r *Recorder) Publish(_ context.Context, events ...LedgerEvent) error {
	r.Events = append(r.Events, events...)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
