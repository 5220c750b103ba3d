package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/quotations"
)

func sumTotals(parts []Part) float64 {
	var s float64
	for _, p := range parts {
		s += p.TotalPrice
	}
	return s
}

func TestDerivePartsProportionalSplit(t *testing.T) {
	q := &quotations.Quotation{TotalAmount: 100}
	parts := DeriveParts(nil, q, []inquiries.Part{
		{Material: "A", Quantity: 2},
		{Material: "B", Quantity: 3},
		{Material: "C", Quantity: 5},
	})
	require.Len(t, parts, 3)
	assert.InDelta(t, 20.0, parts[0].TotalPrice, 0.001)
	assert.InDelta(t, 30.0, parts[1].TotalPrice, 0.001)
	assert.InDelta(t, 50.0, parts[2].TotalPrice, 0.001)
	assert.InDelta(t, 10.0, parts[0].UnitPrice, 0.001)
	assert.InDelta(t, 100.0, sumTotals(parts), 0.0001)
}

func TestDerivePartsRemainderOnLastLine(t *testing.T) {
	q := &quotations.Quotation{TotalAmount: 100}
	parts := DeriveParts(nil, q, []inquiries.Part{
		{Material: "A", Quantity: 1},
		{Material: "B", Quantity: 1},
		{Material: "C", Quantity: 1},
	})
	require.Len(t, parts, 3)
	assert.InDelta(t, 33.33, parts[0].TotalPrice, 0.001)
	assert.InDelta(t, 33.34, parts[2].TotalPrice, 0.001)
	assert.InDelta(t, 100.0, sumTotals(parts), 0.0001)
}

func TestDerivePartsZeroQuantitySplitsEvenly(t *testing.T) {
	q := &quotations.Quotation{TotalAmount: 90}
	parts := DeriveParts(nil, q, []inquiries.Part{{Material: "A"}, {Material: "B"}})
	require.Len(t, parts, 2)
	assert.InDelta(t, 45.0, parts[0].TotalPrice, 0.001)
	assert.InDelta(t, 45.0, parts[1].TotalPrice, 0.001)
}

func TestDerivePartsPriority(t *testing.T) {
	q := &quotations.Quotation{
		TotalAmount: 500,
		Items:       []quotations.Item{{Material: "Steel", Quantity: 10, UnitPrice: 50, TotalPrice: 500}},
	}
	fromItems := DeriveParts(nil, q, []inquiries.Part{{Material: "ignored", Quantity: 1}})
	require.Len(t, fromItems, 1)
	assert.Equal(t, "Steel", fromItems[0].Material)

	explicit := DeriveParts([]Part{{Material: "Custom", Quantity: 4, UnitPrice: 2.5}}, q, nil)
	require.Len(t, explicit, 1)
	assert.Equal(t, "Custom", explicit[0].Material)
	assert.InDelta(t, 10.0, explicit[0].TotalPrice, 0.001)

	assert.Empty(t, DeriveParts(nil, &quotations.Quotation{TotalAmount: 10}, nil))
}
