package quotations

import (
	"fmt"
	"strings"
	"time"

	"github.com/fabline/fabline/internal/shared"
)

func invalid(q *Quotation, action string) error {
	return fmt.Errorf("%w: cannot %s quotation %s in status %s", shared.ErrInvalidTransition, action, q.QuotationNumber, q.Status)
}

// markSent moves a prepared quotation to sent.
func markSent(q *Quotation, now time.Time) error {
	if !q.Status.IsPreparing() {
		return invalid(q, "send")
	}
	q.Status = StatusSent
	q.SentAt = &now
	q.UpdatedAt = now
	return nil
}

// markAccepted moves a sent quotation to accepted.
func markAccepted(q *Quotation, now time.Time) error {
	if q.Status != StatusSent {
		return invalid(q, "accept")
	}
	q.Status = StatusAccepted
	q.AcceptedAt = &now
	q.UpdatedAt = now
	return nil
}

// markRejected records a rejection. The reason is mandatory.
func markRejected(q *Quotation, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.Validationf("rejection reason is required")
	}
	if !q.Status.CanReject() {
		return invalid(q, "reject")
	}
	q.Status = StatusRejected
	q.RejectionReason = reason
	q.RejectedAt = &now
	q.UpdatedAt = now
	return nil
}

// attachDocument records a stored PDF. Draft and created quotations become
// uploaded; an uploaded quotation may have its document replaced.
func attachDocument(q *Quotation, doc Document, now time.Time) error {
	if !q.Status.IsPreparing() {
		return invalid(q, "attach a document to")
	}
	q.Document = &doc
	q.Status = StatusUploaded
	q.UpdatedAt = now
	return nil
}
