package inquiries

// CreateRequest is the customer's submission. Staff may submit on behalf of
// a customer by setting CustomerID.
type CreateRequest struct {
	CustomerID          string `json:"customerId,omitempty"`
	Parts               []Part `json:"parts" validate:"required,min=1,dive"`
	DeliveryAddress     string `json:"deliveryAddress" validate:"required,max=500"`
	SpecialInstructions string `json:"specialInstructions" validate:"max=2000"`
}

// UpdateRequest carries the customer-editable fields; nil leaves a field as is.
type UpdateRequest struct {
	Parts               *[]Part `json:"parts,omitempty" validate:"omitempty,min=1,dive"`
	DeliveryAddress     *string `json:"deliveryAddress,omitempty" validate:"omitempty,min=1,max=500"`
	SpecialInstructions *string `json:"specialInstructions,omitempty" validate:"omitempty,max=2000"`
}

// UpdatePartsRequest is the back-office parts edit.
type UpdatePartsRequest struct {
	Parts []Part `json:"parts" validate:"required,min=1,dive"`
}

// ListFilter narrows List results.
type ListFilter struct {
	CustomerID string
	Status     Status
	Page       int
	PerPage    int
}
