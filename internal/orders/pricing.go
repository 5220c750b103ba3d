package orders

import (
	"github.com/shopspring/decimal"

	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/quotations"
)

// DeriveParts picks the priced lines for an order: explicit parts first,
// then the quotation's items, then a quantity-weighted split of the
// quotation total across the inquiry's parts. Split lines always sum to the
// quotation total; the rounding remainder lands on the last line.
func DeriveParts(explicit []Part, q *quotations.Quotation, inquiryParts []inquiries.Part) []Part {
	if len(explicit) > 0 {
		out := make([]Part, len(explicit))
		for i, p := range explicit {
			if p.TotalPrice == 0 && p.UnitPrice > 0 {
				p.TotalPrice = decimal.NewFromFloat(p.UnitPrice).Mul(decimal.NewFromInt(int64(p.Quantity))).Round(2).InexactFloat64()
			}
			out[i] = p
		}
		return out
	}
	if q == nil {
		return nil
	}
	if len(q.Items) > 0 {
		out := make([]Part, len(q.Items))
		for i, it := range q.Items {
			out[i] = Part{
				Material:   it.Material,
				Thickness:  it.Thickness,
				Grade:      it.Grade,
				Quantity:   it.Quantity,
				Remarks:    it.Remarks,
				UnitPrice:  it.UnitPrice,
				TotalPrice: it.TotalPrice,
			}
		}
		return out
	}
	return splitTotal(decimal.NewFromFloat(q.TotalAmount).Round(2), inquiryParts)
}

func splitTotal(total decimal.Decimal, parts []inquiries.Part) []Part {
	if len(parts) == 0 {
		return nil
	}
	var sumQty int64
	for _, p := range parts {
		sumQty += int64(max(p.Quantity, 0))
	}

	out := make([]Part, len(parts))
	allocated := decimal.Zero
	for i, p := range parts {
		var share decimal.Decimal
		switch {
		case i == len(parts)-1:
			share = total.Sub(allocated)
		case sumQty == 0:
			share = total.Div(decimal.NewFromInt(int64(len(parts)))).Round(2)
		default:
			share = total.Mul(decimal.NewFromInt(int64(max(p.Quantity, 0)))).Div(decimal.NewFromInt(sumQty)).Round(2)
		}
		allocated = allocated.Add(share)

		unit := share
		if p.Quantity > 0 {
			unit = share.Div(decimal.NewFromInt(int64(p.Quantity))).Round(2)
		}
		out[i] = Part{
			Material:   p.Material,
			Thickness:  p.Thickness,
			Grade:      p.Grade,
			Quantity:   p.Quantity,
			Remarks:    p.Remarks,
			UnitPrice:  unit.InexactFloat64(),
			TotalPrice: share.InexactFloat64(),
		}
	}
	return out
}
