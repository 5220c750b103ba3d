// Package orders turns accepted quotations into manufacturing orders and
// moves them through production, dispatch and delivery.
package orders

import (
	"slices"
	"time"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending          Status = "pending"
	StatusConfirmed        Status = "confirmed"
	StatusInProduction     Status = "in_production"
	StatusReadyForDispatch Status = "ready_for_dispatch"
	StatusDispatched       Status = "dispatched"
	StatusDelivered        Status = "delivered"
	StatusCancelled        Status = "cancelled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentOnline       PaymentMethod = "online"
	PaymentPending      PaymentMethod = "pending"
)

// PaymentStatus follows the order status.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Part is a priced order line.
type Part struct {
	Material   string  `json:"material" bson:"material" validate:"required,max=120"`
	Thickness  string  `json:"thickness" bson:"thickness" validate:"max=60"`
	Grade      string  `json:"grade,omitempty" bson:"grade" validate:"max=60"`
	Quantity   int     `json:"quantity" bson:"quantity" validate:"gte=0"`
	Remarks    string  `json:"remarks,omitempty" bson:"remarks" validate:"max=500"`
	UnitPrice  float64 `json:"unitPrice" bson:"unitPrice" validate:"gte=0"`
	TotalPrice float64 `json:"totalPrice" bson:"totalPrice" validate:"gte=0"`
}

// Payment is the order's payment record.
type Payment struct {
	Method         PaymentMethod `json:"method" bson:"method"`
	Status         PaymentStatus `json:"status" bson:"status"`
	TransactionID  string        `json:"transactionId,omitempty" bson:"transactionId"`
	GatewayOrderID string        `json:"gatewayOrderId,omitempty" bson:"gatewayOrderId"`
	Amount         float64       `json:"amount" bson:"amount"`
	PaidAt         *time.Time    `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	Gateway        string        `json:"gateway,omitempty" bson:"gateway"`
	RefundID       string        `json:"refundId,omitempty" bson:"refundId,omitempty"`
}

// Production tracks manufacturing progress.
type Production struct {
	StartDate           *time.Time `json:"startDate,omitempty" bson:"startDate,omitempty"`
	EstimatedCompletion *time.Time `json:"estimatedCompletion,omitempty" bson:"estimatedCompletion,omitempty"`
	ActualCompletion    *time.Time `json:"actualCompletion,omitempty" bson:"actualCompletion,omitempty"`
	Notes               string     `json:"notes,omitempty" bson:"notes"`
}

// Dispatch tracks shipping.
type Dispatch struct {
	Courier           string     `json:"courier,omitempty" bson:"courier"`
	TrackingNumber    string     `json:"trackingNumber,omitempty" bson:"trackingNumber"`
	DispatchedAt      *time.Time `json:"dispatchedAt,omitempty" bson:"dispatchedAt,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty" bson:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time `json:"actualDelivery,omitempty" bson:"actualDelivery,omitempty"`
	Notes             string     `json:"notes,omitempty" bson:"notes"`
}

// HasTracking reports whether courier or tracking details were recorded.
func (d *Dispatch) HasTracking() bool {
	return d != nil && (d.Courier != "" || d.TrackingNumber != "")
}

// TimelineEntry records one status change.
type TimelineEntry struct {
	Status      Status    `json:"status" bson:"status"`
	Description string    `json:"description" bson:"description"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	Actor       string    `json:"actor,omitempty" bson:"actor"`
}

// Order is a committed manufacturing job.
type Order struct {
	ID                 string          `json:"id" bson:"_id"`
	OrderNumber        string          `json:"orderNumber" bson:"orderNumber"`
	QuotationID        string          `json:"quotationId" bson:"quotationId"`
	InquiryID          string          `json:"inquiryId" bson:"inquiryId"`
	CustomerID         string          `json:"customerId" bson:"customerId"`
	Parts              []Part          `json:"parts" bson:"parts"`
	TotalAmount        float64         `json:"totalAmount" bson:"totalAmount"`
	Currency           string          `json:"currency" bson:"currency"`
	DeliveryAddress    string          `json:"deliveryAddress" bson:"deliveryAddress"`
	Status             Status          `json:"status" bson:"status"`
	Payment            Payment         `json:"payment" bson:"payment"`
	Production         *Production     `json:"production,omitempty" bson:"production,omitempty"`
	Dispatch           *Dispatch       `json:"dispatch,omitempty" bson:"dispatch,omitempty"`
	Timeline           []TimelineEntry `json:"timeline" bson:"timeline"`
	ConfirmedAt        *time.Time      `json:"confirmedAt,omitempty" bson:"confirmedAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty" bson:"cancellationReason"`
	CreatedAt          time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	out := o
	out.Parts = slices.Clone(o.Parts)
	out.Timeline = slices.Clone(o.Timeline)
	if o.Production != nil {
		p := *o.Production
		out.Production = &p
	}
	if o.Dispatch != nil {
		d := *o.Dispatch
		out.Dispatch = &d
	}
	return out
}
