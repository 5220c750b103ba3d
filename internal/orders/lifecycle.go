package orders

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fabline/fabline/internal/shared"
)

var transitions = map[Status][]Status{
	StatusPending:          {StatusConfirmed, StatusCancelled},
	StatusConfirmed:        {StatusInProduction, StatusCancelled},
	StatusInProduction:     {StatusReadyForDispatch, StatusCancelled},
	StatusReadyForDispatch: {StatusDispatched, StatusCancelled},
	StatusDispatched:       {StatusDelivered},
	StatusDelivered:        nil,
	StatusCancelled:        nil,
}

var timelineText = map[Status]string{
	StatusPending:          "Order placed",
	StatusConfirmed:        "Order confirmed and payment received",
	StatusInProduction:     "Production started",
	StatusReadyForDispatch: "Production completed, ready for dispatch",
	StatusDispatched:       "Order dispatched",
	StatusDelivered:        "Order delivered",
	StatusCancelled:        "Order cancelled",
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// TransitionInput carries the optional details of a status change.
type TransitionInput struct {
	Actor               string
	Note                string
	EstimatedCompletion *time.Time
	Reason              string
}

// Transition applies target to a copy of o. It reports changed=false, and
// returns o untouched, when o is already in target.
func Transition(o Order, target Status, in TransitionInput, now time.Time) (Order, bool, error) {
	if !target.IsValid() {
		return o, false, shared.Validationf("unknown order status %q", target)
	}
	if o.Status == target {
		return o, false, nil
	}
	if !CanTransition(o.Status, target) {
		return o, false, fmt.Errorf("%w: order %s cannot move from %s to %s",
			shared.ErrInvalidTransition, o.OrderNumber, o.Status, target)
	}

	next := o.Clone()
	switch target {
	case StatusConfirmed:
		if next.ConfirmedAt == nil {
			next.ConfirmedAt = &now
		}
		next.Payment.Status = PaymentStatusCompleted
		if next.Payment.PaidAt == nil {
			next.Payment.PaidAt = &now
		}
		if next.Payment.Method == "" || next.Payment.Method == PaymentPending {
			next.Payment.Method = PaymentBankTransfer
		}
	case StatusInProduction:
		if next.Production == nil {
			next.Production = &Production{}
		}
		if next.Production.StartDate == nil {
			next.Production.StartDate = &now
		}
		if in.EstimatedCompletion != nil {
			eta := *in.EstimatedCompletion
			next.Production.EstimatedCompletion = &eta
		}
		if in.Note != "" {
			next.Production.Notes = in.Note
		}
	case StatusReadyForDispatch:
		if next.Production == nil {
			next.Production = &Production{}
		}
		next.Production.ActualCompletion = &now
	case StatusDispatched:
		if next.Dispatch == nil {
			next.Dispatch = &Dispatch{}
		}
		if next.Dispatch.DispatchedAt == nil {
			next.Dispatch.DispatchedAt = &now
		}
	case StatusDelivered:
		if next.Dispatch == nil {
			next.Dispatch = &Dispatch{}
		}
		next.Dispatch.ActualDelivery = &now
	case StatusCancelled:
		next.Payment.Status = PaymentStatusRefunded
		next.CancelledAt = &now
		if reason := strings.TrimSpace(in.Reason); reason != "" {
			next.CancellationReason = reason
		}
	}

	next.Status = target
	next.UpdatedAt = now
	next.Timeline = append(next.Timeline, timelineEntry(target, in, now))
	return next, true, nil
}

func timelineEntry(status Status, in TransitionInput, now time.Time) TimelineEntry {
	desc := timelineText[status]
	switch {
	case status == StatusCancelled && strings.TrimSpace(in.Reason) != "":
		desc += ": " + strings.TrimSpace(in.Reason)
	case in.Note != "":
		desc += ": " + in.Note
	}
	return TimelineEntry{Status: status, Description: desc, Timestamp: now, Actor: in.Actor}
}
