// Package events names the committed state changes that fan out to
// notifications. Entity packages publish through Dispatcher without
// depending on how delivery happens.
package events

import (
	"context"
	"sync"
	"time"
)

// Kind identifies a committed state change.
type Kind string

const (
	InquiryCreated     Kind = "inquiry.created"
	QuotationSent      Kind = "quotation.sent"
	QuotationAccepted  Kind = "quotation.accepted"
	OrderCreated       Kind = "order.created"
	OrderStatusChanged Kind = "order.status_changed"
	DispatchRecorded   Kind = "order.dispatch_recorded"
	DeliveryConfirmed  Kind = "order.delivery_confirmed"
)

// Event carries identifiers only. Handlers re-read the entity from the store.
type Event struct {
	Kind       Kind
	EntityID   string
	ActorID    string
	OldStatus  string
	NewStatus  string
	OccurredAt time.Time
}

// New stamps an event with the current time.
func New(kind Kind, entityID, actorID string) Event {
	return Event{Kind: kind, EntityID: entityID, ActorID: actorID, OccurredAt: time.Now().UTC()}
}

// Dispatcher fires the side effects of an event. Dispatch never blocks on
// delivery and never reports failure to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event)
}

// Nop discards events.
type Nop struct{}

// Dispatch implements Dispatcher.
func (Nop) Dispatch(context.Context, Event) {}

// Recorder keeps dispatched events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Dispatch implements Dispatcher.
func (r *Recorder) Dispatch(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds lists the recorded kinds in order.
func (r *Recorder) Kinds() []Kind {
	evts := r.Events()
	out := make([]Kind, len(evts))
	for i, e := range evts {
		out[i] = e.Kind
	}
	return out
}
