// Package alert implements the alert lifecycle state machine.
//
// An alert starts pending and moves at most once, to triggered (pushed by the
// server) or to deleted (a confirmed local delete). Both are terminal: every
// later event for the alert is ignored, so duplicate or stale pushes and
// refreshes can never move a fired alert back to pending.
package alert

import (
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// Kind identifies a lifecycle event.
type Kind int

const (
	// Triggered is an alert_triggered push for the alert.
	Triggered Kind = iota + 1

	// DeleteConfirmed means the durable delete request succeeded.
	DeleteConfirmed

	// DeleteFailed means the durable delete request failed.
	DeleteFailed

	// Refreshed carries the alert's status from a full fetch.
	Refreshed
)

func (k Kind) String() string {
	switch k {
	case Triggered:
		return "triggered"
	case DeleteConfirmed:
		return "delete_confirmed"
	case DeleteFailed:
		return "delete_failed"
	case Refreshed:
		return "refreshed"
	default:
		return "unknown"
	}
}

// Event is one input to the state machine.
type Event struct {
	Kind Kind

	// Price is the triggered price (Triggered, or Refreshed to triggered).
	Price float64

	// At is the event time reported by the server, zero if absent.
	At time.Time

	// ReceivedAt is the local receipt time, used when At is zero.
	ReceivedAt time.Time

	// Status is the server-side status carried by a Refreshed event.
	Status model.AlertStatus
}

// TriggeredBy builds the Triggered event for a push.
func TriggeredBy(t model.AlertTriggeredEvent, receivedAt time.Time) Event {
	return Event{
		Kind:       Triggered,
		Price:      t.TriggeredPrice,
		At:         t.At,
		ReceivedAt: receivedAt,
	}
}

// RefreshedFrom builds the Refreshed event for a fetched alert.
func RefreshedFrom(fetched model.Alert, receivedAt time.Time) Event {
	ev := Event{
		Kind:       Refreshed,
		Status:     fetched.Status,
		ReceivedAt: receivedAt,
	}
	if fetched.TriggeredPrice != nil {
		ev.Price = *fetched.TriggeredPrice
	}
	if fetched.TriggeredAt != nil {
		ev.At = *fetched.TriggeredAt
	}
	return ev
}

// Transition returns the state following current on ev and whether it
// differs from current.
func Transition(current model.AlertStatus, ev Event) (model.AlertStatus, bool) {
	if current.Terminal() {
		return current, false
	}

	next := current
	switch ev.Kind {
	case Triggered:
		next = model.AlertTriggered
	case DeleteConfirmed:
		next = model.AlertDeleted
	case Refreshed:
		// A refresh may move a pending alert forward, never back.
		if ev.Status.Terminal() {
			next = ev.Status
		}
	}
	return next, next != current
}

// Apply runs ev against a and returns the resulting alert. When the
// transition lands in triggered it records the triggered price and time,
// preferring the event time over the receipt time.
func Apply(a model.Alert, ev Event) (model.Alert, bool) {
	next, changed := Transition(a.Status, ev)
	if !changed {
		return a, false
	}

	a.Status = next
	a.Deleting = false

	if next == model.AlertTriggered {
		price := ev.Price
		at := ev.At
		if at.IsZero() {
			at = ev.ReceivedAt
		}
		a.TriggeredPrice = &price
		a.TriggeredAt = &at
	}
	return a, true
}
