package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabline/fabline/internal/platform/db"
	"github.com/fabline/fabline/internal/shared"
)

const orderColumns = `id, order_number, quotation_id, inquiry_id, customer_id, parts, total_amount, currency, delivery_address,
	status, payment, production, dispatch, timeline, confirmed_at, cancelled_at, cancellation_reason, created_at, updated_at`

type pgRepository struct {
	db db.DBTX
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{db: pool}
}

func (r *pgRepository) Create(ctx context.Context, o *Order) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		o.ID, o.OrderNumber, o.QuotationID, o.InquiryID, o.CustomerID, nonNilParts(o.Parts), o.TotalAmount, o.Currency,
		o.DeliveryAddress, string(o.Status), o.Payment, o.Production, o.Dispatch, nonNilTimeline(o.Timeline),
		o.ConfirmedAt, o.CancelledAt, o.CancellationReason, o.CreatedAt, o.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: quotation %s already has an order", shared.ErrConcurrencyConflict, o.QuotationID)
	}
	return db.Wrap("insert order", err)
}

func (r *pgRepository) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, db.Wrap("get order "+id, err)
	}
	return o, nil
}

func (r *pgRepository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	var conditions []string
	var args []any
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Wrap("count orders", err)
	}
	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Wrap("list orders", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, db.Wrap("scan order", err)
		}
		out = append(out, *o)
	}
	return out, total, db.Wrap("list orders rows", rows.Err())
}

func (r *pgRepository) UpdateIf(ctx context.Context, o *Order, expected Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET parts = $3, status = $4, payment = $5, production = $6, dispatch = $7, timeline = $8,
		    confirmed_at = $9, cancelled_at = $10, cancellation_reason = $11, updated_at = $12
		WHERE id = $1 AND status = $2`,
		o.ID, string(expected), nonNilParts(o.Parts), string(o.Status), o.Payment, o.Production, o.Dispatch,
		nonNilTimeline(o.Timeline), o.ConfirmedAt, o.CancelledAt, o.CancellationReason, o.UpdatedAt)
	if err != nil {
		return false, db.Wrap("update order", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.QuotationID, &o.InquiryID, &o.CustomerID, &o.Parts, &o.TotalAmount,
		&o.Currency, &o.DeliveryAddress, &status, &o.Payment, &o.Production, &o.Dispatch, &o.Timeline,
		&o.ConfirmedAt, &o.CancelledAt, &o.CancellationReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func nonNilParts(parts []Part) []Part {
	if parts == nil {
		return []Part{}
	}
	return parts
}

func nonNilTimeline(entries []TimelineEntry) []TimelineEntry {
	if entries == nil {
		return []TimelineEntry{}
	}
	return entries
}
