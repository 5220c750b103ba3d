package orders

import "time"

// CreateRequest places an order against an accepted quotation.
type CreateRequest struct {
	QuotationID     string        `json:"quotationId" validate:"required"`
	Amount          float64       `json:"amount" validate:"gt=0"`
	PaymentMethod   PaymentMethod `json:"paymentMethod" validate:"required"`
	Parts           []Part        `json:"parts" validate:"omitempty,dive"`
	DeliveryAddress string        `json:"deliveryAddress" validate:"max=500"`
	// Online payments only.
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}

// StatusChangeRequest is the back-office status update.
type StatusChangeRequest struct {
	Status              Status     `json:"status" validate:"required"`
	Note                string     `json:"note" validate:"max=500"`
	EstimatedCompletion *time.Time `json:"estimatedCompletion"`
	Reason              string     `json:"reason" validate:"max=500"`
}

// DispatchRequest records shipping details.
type DispatchRequest struct {
	Courier           string     `json:"courier" validate:"required,max=120"`
	TrackingNumber    string     `json:"trackingNumber" validate:"max=120"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	Notes             string     `json:"notes" validate:"max=500"`
}

// CheckoutRequest opens an online payment for a quotation.
type CheckoutRequest struct {
	QuotationID string `json:"quotationId" validate:"required"`
}

// ListFilter narrows List results.
type ListFilter struct {
	CustomerID string
	Status     Status
	Page       int
	PerPage    int
}
