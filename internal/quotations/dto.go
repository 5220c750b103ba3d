package quotations

// CreateRequest is the back-office quotation draft. TotalAmount may be left
// zero when items are given; it is then the sum of item totals.
type CreateRequest struct {
	InquiryID   string  `json:"inquiryId" validate:"required"`
	Items       []Item  `json:"items" validate:"omitempty,dive"`
	TotalAmount float64 `json:"totalAmount" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	// Status lets staff start from created instead of draft.
	Status Status `json:"status" validate:"omitempty,oneof=draft created"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// ListFilter narrows List results.
type ListFilter struct {
	CustomerID string
	InquiryID  string
	Status     Status
	Page       int
	PerPage    int
}
