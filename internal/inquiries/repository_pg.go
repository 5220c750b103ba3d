package inquiries

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

const inquiryColumns = `id, inquiry_number, customer_id, parts, files, delivery_address, special_instructions, status, created_at, updated_at`

type pgRepository struct {
	db db.DBTX
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{db: pool}
}

func (r *pgRepository) Create(ctx context.Context, inq *Inquiry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO inquiries (`+inquiryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inq.ID, inq.InquiryNumber, inq.CustomerID, inq.Parts, nonNilFiles(inq.Files),
		inq.DeliveryAddress, inq.SpecialInstructions, string(inq.Status), inq.CreatedAt, inq.UpdatedAt)
	return db.Wrap("insert inquiry", err)
}

func (r *pgRepository) Get(ctx context.Context, id string) (*Inquiry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+inquiryColumns+` FROM inquiries WHERE id = $1`, id)
	inq, err := scanInquiry(row)
	if err != nil {
		return nil, db.Wrap("get inquiry "+id, err)
	}
	return inq, nil
}

func (r *pgRepository) List(ctx context.Context, f ListFilter) ([]Inquiry, int, error) {
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
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM inquiries `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Wrap("count inquiries", err)
	}

	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	query := fmt.Sprintf(`SELECT %s FROM inquiries %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		inquiryColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Wrap("list inquiries", err)
	}
	defer rows.Close()
	var out []Inquiry
	for rows.Next() {
		inq, err := scanInquiry(rows)
		if err != nil {
			return nil, 0, db.Wrap("scan inquiry", err)
		}
		out = append(out, *inq)
	}
	return out, total, db.Wrap("list inquiries rows", rows.Err())
}

func (r *pgRepository) Update(ctx context.Context, inq *Inquiry) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE inquiries
		SET parts = $2, files = $3, delivery_address = $4, special_instructions = $5, status = $6, updated_at = $7
		WHERE id = $1`,
		inq.ID, inq.Parts, nonNilFiles(inq.Files), inq.DeliveryAddress, inq.SpecialInstructions, string(inq.Status), inq.UpdatedAt)
	if err != nil {
		return db.Wrap("update inquiry", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: inquiry %s", shared.ErrNotFound, inq.ID)
	}
	return nil
}

func (r *pgRepository) UpdateStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE inquiries SET status = $3, updated_at = $4
		WHERE id = $1 AND status = ANY($2)`,
		id, statusStrings(from), string(to), at)
	if err != nil {
		return false, db.Wrap("update inquiry status", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanInquiry(row pgx.Row) (*Inquiry, error) {
	var inq Inquiry
	var status string
	if err := row.Scan(&inq.ID, &inq.InquiryNumber, &inq.CustomerID, &inq.Parts, &inq.Files,
		&inq.DeliveryAddress, &inq.SpecialInstructions, &status, &inq.CreatedAt, &inq.UpdatedAt); err != nil {
		return nil, err
	}
	inq.Status = Status(status)
	return &inq, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nonNilFiles(files []File) []File {
	if files == nil {
		return []File{}
	}
	return files
}
