package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/shared"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusInProduction, StatusReadyForDispatch,
	StatusDispatched, StatusDelivered, StatusCancelled,
}

func baseOrder(status Status) Order {
	return Order{
		ID:          "o1",
		OrderNumber: "ORD-0001-2026",
		Status:      status,
		Payment:     Payment{Method: PaymentPending, Status: PaymentStatusPending, Amount: 100},
		Timeline:    []TimelineEntry{{Status: StatusPending, Description: "Order placed"}},
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:          {StatusConfirmed, StatusCancelled},
		StatusConfirmed:        {StatusInProduction, StatusCancelled},
		StatusInProduction:     {StatusReadyForDispatch, StatusCancelled},
		StatusReadyForDispatch: {StatusDispatched, StatusCancelled},
		StatusDispatched:       {StatusDelivered},
	}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if from == to {
				continue
			}
			order := baseOrder(from)
			next, changed, err := Transition(order, to, TransitionInput{Actor: "staff-1"}, now)
			if contains(allowed[from], to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.True(t, changed)
				assert.Equal(t, to, next.Status)
				require.Len(t, next.Timeline, 2)
				assert.Equal(t, to, next.Timeline[1].Status)
				assert.Equal(t, "staff-1", next.Timeline[1].Actor)
				continue
			}
			assert.ErrorIs(t, err, shared.ErrInvalidTransition, "%s -> %s", from, to)
			assert.False(t, changed)
			assert.Equal(t, from, next.Status)
			assert.Len(t, next.Timeline, 1)
		}
	}
}

func contains(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestSameStatusIsNoop(t *testing.T) {
	order := baseOrder(StatusConfirmed)
	next, changed, err := Transition(order, StatusConfirmed, TransitionInput{}, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, next.Timeline, 1)
	assert.Nil(t, next.ConfirmedAt)
}

func TestUnknownTargetIsValidationError(t *testing.T) {
	_, _, err := Transition(baseOrder(StatusPending), Status("shipped"), TransitionInput{}, time.Now())
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	order := baseOrder(StatusReadyForDispatch)
	order.Production = &Production{Notes: "batch A"}
	_, _, err := Transition(order, StatusDispatched, TransitionInput{}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, order.Dispatch)
	assert.Len(t, order.Timeline, 1)
}

func TestConfirmSideEffects(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next, _, err := Transition(baseOrder(StatusPending), StatusConfirmed, TransitionInput{}, now)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusCompleted, next.Payment.Status)
	assert.Equal(t, PaymentBankTransfer, next.Payment.Method)
	require.NotNil(t, next.ConfirmedAt)
	require.NotNil(t, next.Payment.PaidAt)
	assert.Equal(t, now, *next.Payment.PaidAt)

	cod := baseOrder(StatusPending)
	cod.Payment.Method = PaymentCOD
	next, _, err = Transition(cod, StatusConfirmed, TransitionInput{}, now)
	require.NoError(t, err)
	assert.Equal(t, PaymentCOD, next.Payment.Method)
}

func TestProductionAndDispatchTimestamps(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	eta := t0.Add(72 * time.Hour)

	o, _, err := Transition(baseOrder(StatusConfirmed), StatusInProduction, TransitionInput{EstimatedCompletion: &eta, Note: "laser cut"}, t0)
	require.NoError(t, err)
	require.NotNil(t, o.Production)
	assert.Equal(t, t0, *o.Production.StartDate)
	assert.Equal(t, eta, *o.Production.EstimatedCompletion)
	assert.Contains(t, o.Timeline[len(o.Timeline)-1].Description, "laser cut")

	t1 := t0.Add(48 * time.Hour)
	o, _, err = Transition(o, StatusReadyForDispatch, TransitionInput{}, t1)
	require.NoError(t, err)
	assert.Equal(t, t1, *o.Production.ActualCompletion)
	assert.Equal(t, t0, *o.Production.StartDate)

	t2 := t1.Add(time.Hour)
	o, _, err = Transition(o, StatusDispatched, TransitionInput{}, t2)
	require.NoError(t, err)
	require.NotNil(t, o.Dispatch)
	assert.Equal(t, t2, *o.Dispatch.DispatchedAt)

	t3 := t2.Add(24 * time.Hour)
	o, _, err = Transition(o, StatusDelivered, TransitionInput{}, t3)
	require.NoError(t, err)
	assert.Equal(t, t3, *o.Dispatch.ActualDelivery)
	assert.Equal(t, t2, *o.Dispatch.DispatchedAt)
	assert.True(t, o.Status.IsTerminal())
}

func TestCancellationAlwaysRefunds(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusConfirmed, StatusInProduction, StatusReadyForDispatch} {
		order := baseOrder(from)
		order.Payment.Status = PaymentStatusCompleted
		next, _, err := Transition(order, StatusCancelled, TransitionInput{Reason: " customer request "}, time.Now())
		require.NoError(t, err, from)
		assert.Equal(t, PaymentStatusRefunded, next.Payment.Status)
		assert.NotNil(t, next.CancelledAt)
		assert.Equal(t, "customer request", next.CancellationReason)
		assert.Equal(t, "Order cancelled: customer request", next.Timeline[len(next.Timeline)-1].Description)
	}
}
