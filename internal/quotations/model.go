// Package quotations prices an inquiry and carries it through customer
// acceptance up to the moment an order consumes it.
package quotations

import (
	"time"

	"github.com/fabline/fabline/internal/inquiries"
)

// Status is the quotation lifecycle state.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusCreated      Status = "created"
	StatusUploaded     Status = "uploaded"
	StatusSent         Status = "sent"
	StatusAccepted     Status = "accepted"
	StatusRejected     Status = "rejected"
	StatusOrderCreated Status = "order_created"
)

// DefaultCurrency applies when a quotation names none.
const DefaultCurrency = "INR"

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusCreated, StatusUploaded, StatusSent, StatusAccepted, StatusRejected, StatusOrderCreated:
		return true
	}
	return false
}

// IsPreparing reports whether the quotation has not been sent yet.
func (s Status) IsPreparing() bool {
	return s == StatusDraft || s == StatusCreated || s == StatusUploaded
}

// CanReject reports whether a rejection is still possible.
func (s Status) CanReject() bool {
	return s.IsPreparing() || s == StatusSent
}

// CustomerInfo is frozen at creation and never refreshed from the user record.
type CustomerInfo struct {
	Name    string `json:"name" bson:"name"`
	Company string `json:"company,omitempty" bson:"company"`
	Email   string `json:"email" bson:"email"`
	Phone   string `json:"phone,omitempty" bson:"phone"`
}

// Item is a priced part line.
type Item struct {
	Material   string  `json:"material" bson:"material" validate:"required,max=120"`
	Thickness  string  `json:"thickness" bson:"thickness" validate:"max=60"`
	Grade      string  `json:"grade,omitempty" bson:"grade" validate:"max=60"`
	Quantity   int     `json:"quantity" bson:"quantity" validate:"gte=0"`
	Remarks    string  `json:"remarks,omitempty" bson:"remarks" validate:"max=500"`
	UnitPrice  float64 `json:"unitPrice" bson:"unitPrice" validate:"gte=0"`
	TotalPrice float64 `json:"totalPrice" bson:"totalPrice" validate:"gte=0"`
}

// AsPart converts the item back into an inquiry part carrying its prices.
func (i Item) AsPart() inquiries.Part {
	unit, total := i.UnitPrice, i.TotalPrice
	return inquiries.Part{
		Material:   i.Material,
		Thickness:  i.Thickness,
		Grade:      i.Grade,
		Quantity:   i.Quantity,
		Remarks:    i.Remarks,
		UnitPrice:  &unit,
		TotalPrice: &total,
	}
}

// Document points at the quotation PDF in the blob store.
type Document struct {
	Locator     string    `json:"locator" bson:"locator"`
	Name        string    `json:"name" bson:"name"`
	Size        int64     `json:"size" bson:"size"`
	ContentType string    `json:"contentType" bson:"contentType"`
	StoredAt    time.Time `json:"storedAt" bson:"storedAt"`
}

// Quotation is a priced proposal against one inquiry.
type Quotation struct {
	ID              string       `json:"id" bson:"_id"`
	QuotationNumber string       `json:"quotationNumber" bson:"quotationNumber"`
	InquiryID       string       `json:"inquiryId" bson:"inquiryId"`
	CustomerID      string       `json:"customerId" bson:"customerId"`
	CustomerInfo    CustomerInfo `json:"customerInfo" bson:"customerInfo"`
	Items           []Item       `json:"items" bson:"items"`
	TotalAmount     float64      `json:"totalAmount" bson:"totalAmount"`
	Currency        string       `json:"currency" bson:"currency"`
	Status          Status       `json:"status" bson:"status"`
	RejectionReason string       `json:"rejectionReason,omitempty" bson:"rejectionReason"`
	Document        *Document    `json:"document,omitempty" bson:"document,omitempty"`
	OrderID         string       `json:"orderId,omitempty" bson:"orderId"`
	OrderCreatedAt  *time.Time   `json:"orderCreatedAt,omitempty" bson:"orderCreatedAt,omitempty"`
	SentAt          *time.Time   `json:"sentAt,omitempty" bson:"sentAt,omitempty"`
	AcceptedAt      *time.Time   `json:"acceptedAt,omitempty" bson:"acceptedAt,omitempty"`
	RejectedAt      *time.Time   `json:"rejectedAt,omitempty" bson:"rejectedAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// ItemsTotal sums line totals.
func (q *Quotation) ItemsTotal() float64 {
	var sum float64
	for _, it := range q.Items {
		sum += it.TotalPrice
	}
	return sum
}
