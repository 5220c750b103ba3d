package quotations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabline/fabline/internal/platform/db"
	"github.com/fabline/fabline/internal/shared"
)

const quotationColumns = `id, quotation_number, inquiry_id, customer_id, customer_info, items, total_amount, currency,
	status, rejection_reason, document, order_id, order_created_at, sent_at, accepted_at, rejected_at, created_at, updated_at`

type pgRepository struct {
	db db.DBTX
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{db: pool}
}

func (r *pgRepository) Create(ctx context.Context, q *Quotation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quotations (`+quotationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		q.ID, q.QuotationNumber, q.InquiryID, q.CustomerID, q.CustomerInfo, nonNilItems(q.Items), q.TotalAmount, q.Currency,
		string(q.Status), q.RejectionReason, q.Document, q.OrderID, q.OrderCreatedAt, q.SentAt, q.AcceptedAt, q.RejectedAt,
		q.CreatedAt, q.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: inquiry %s already has a quotation", shared.ErrConcurrencyConflict, q.InquiryID)
	}
	return db.Wrap("insert quotation", err)
}

func (r *pgRepository) Get(ctx context.Context, id string) (*Quotation, error) {
	q, err := scanQuotation(r.db.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1`, id))
	if err != nil {
		return nil, db.Wrap("get quotation "+id, err)
	}
	return q, nil
}

func (r *pgRepository) List(ctx context.Context, f ListFilter) ([]Quotation, int, error) {
	var conditions []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("customer_id", f.CustomerID)
	add("inquiry_id", f.InquiryID)
	add("status", string(f.Status))
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotations `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Wrap("count quotations", err)
	}
	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM quotations %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		quotationColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Wrap("list quotations", err)
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, db.Wrap("scan quotation", err)
		}
		out = append(out, *q)
	}
	return out, total, db.Wrap("list quotations rows", rows.Err())
}

func (r *pgRepository) UpdateIf(ctx context.Context, q *Quotation, expected Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations
		SET items = $3, total_amount = $4, status = $5, rejection_reason = $6, document = $7,
		    sent_at = $8, accepted_at = $9, rejected_at = $10, updated_at = $11
		WHERE id = $1 AND status = $2`,
		q.ID, string(expected), nonNilItems(q.Items), q.TotalAmount, string(q.Status), q.RejectionReason, q.Document,
		q.SentAt, q.AcceptedAt, q.RejectedAt, q.UpdatedAt)
	if err != nil {
		return false, db.Wrap("update quotation", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgRepository) Claim(ctx context.Context, id, orderID string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations
		SET status = $3, order_id = $4, order_created_at = $5, updated_at = $5
		WHERE id = $1 AND status = $2`,
		id, string(StatusAccepted), string(StatusOrderCreated), orderID, at)
	if err != nil {
		return false, db.Wrap("claim quotation", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgRepository) Release(ctx context.Context, id, orderID string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations
		SET status = $3, order_id = '', order_created_at = NULL, updated_at = $5
		WHERE id = $1 AND status = $2 AND order_id = $4`,
		id, string(StatusOrderCreated), string(StatusAccepted), orderID, at)
	if err != nil {
		return false, db.Wrap("release quotation", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	var status string
	if err := row.Scan(&q.ID, &q.QuotationNumber, &q.InquiryID, &q.CustomerID, &q.CustomerInfo, &q.Items, &q.TotalAmount,
		&q.Currency, &status, &q.RejectionReason, &q.Document, &q.OrderID, &q.OrderCreatedAt, &q.SentAt, &q.AcceptedAt,
		&q.RejectedAt, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.Status = Status(status)
	return &q, nil
}

func nonNilItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}
