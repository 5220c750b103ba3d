// Package inquiries handles customer requests for manufactured parts, before
// any pricing exists.
package inquiries

import "time"

// Status tracks an inquiry through review and quotation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
	StatusQuoted   Status = "quoted"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusQuoted, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// CanCustomerEdit reports whether the owning customer may still change the inquiry.
func (s Status) CanCustomerEdit() bool {
	return s == StatusPending || s == StatusReviewed || s == StatusQuoted
}

// CanStaffEditParts reports whether back office may still change parts.
func (s Status) CanStaffEditParts() bool {
	return s != StatusAccepted && s != StatusRejected
}

// syncSources lists the statuses an inquiry may move from when its quotation
// changes state.
var syncSources = map[Status][]Status{
	StatusReviewed: {StatusPending},
	StatusQuoted:   {StatusPending, StatusReviewed},
	StatusAccepted: {StatusPending, StatusReviewed, StatusQuoted},
	StatusRejected: {StatusPending, StatusReviewed, StatusQuoted},
}

// Part is one line of the customer's specification.
type Part struct {
	Material   string   `json:"material" bson:"material" validate:"required,max=120"`
	Thickness  string   `json:"thickness" bson:"thickness" validate:"max=60"`
	Grade      string   `json:"grade,omitempty" bson:"grade" validate:"max=60"`
	Quantity   int      `json:"quantity" bson:"quantity" validate:"gte=0"`
	Remarks    string   `json:"remarks,omitempty" bson:"remarks" validate:"max=500"`
	UnitPrice  *float64 `json:"unitPrice,omitempty" bson:"unitPrice,omitempty" validate:"-"`
	TotalPrice *float64 `json:"totalPrice,omitempty" bson:"totalPrice,omitempty" validate:"-"`
}

// File is uploaded drawing or specification metadata. The bytes live in the
// blob store behind Locator.
type File struct {
	Name        string    `json:"name" bson:"name"`
	Size        int64     `json:"size" bson:"size"`
	ContentType string    `json:"contentType,omitempty" bson:"contentType"`
	Locator     string    `json:"locator,omitempty" bson:"locator"`
	URL         string    `json:"url,omitempty" bson:"url,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

// Inquiry is a customer's request for a quotation.
type Inquiry struct {
	ID                  string    `json:"id" bson:"_id"`
	InquiryNumber       string    `json:"inquiryNumber" bson:"inquiryNumber"`
	CustomerID          string    `json:"customerId" bson:"customerId"`
	Parts               []Part    `json:"parts" bson:"parts"`
	Files               []File    `json:"files" bson:"files"`
	DeliveryAddress     string    `json:"deliveryAddress" bson:"deliveryAddress"`
	SpecialInstructions string    `json:"specialInstructions,omitempty" bson:"specialInstructions"`
	Status              Status    `json:"status" bson:"status"`
	CreatedAt           time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt" bson:"updatedAt"`
}

// TotalQuantity sums part quantities.
func (i *Inquiry) TotalQuantity() int {
	total := 0
	for _, p := range i.Parts {
		total += p.Quantity
	}
	return total
}
