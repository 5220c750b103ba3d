package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabline/fabline/internal/platform/db"
	"github.com/fabline/fabline/internal/shared"
)

const notificationColumns = `id, user_id, title, message, type, read, read_at, related_type, related_id, metadata, created_at`

type pgRepository struct {
	db db.DBTX
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{db: pool}
}

func (r *pgRepository) Create(ctx context.Context, n *Notification) error {
	var relType, relID string
	if n.RelatedEntity != nil {
		relType, relID = n.RelatedEntity.Type, n.RelatedEntity.EntityID
	}
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type), n.Read, n.ReadAt, relType, relID, metadata, n.CreatedAt)
	return db.Wrap("insert notification", err)
}

func (r *pgRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, db.Wrap("list notifications", err)
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, db.Wrap("scan notification", err)
		}
		out = append(out, *n)
	}
	return out, db.Wrap("list notifications rows", rows.Err())
}

func (r *pgRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) (*Notification, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns, id, userID, at)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: notification %s", shared.ErrNotFound, id)
		}
		return nil, db.Wrap("mark notification read", err)
	}
	return n, nil
}

func (r *pgRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT read`, userID, at)
	if err != nil {
		return 0, db.Wrap("mark all notifications read", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&count)
	return count, db.Wrap("count unread notifications", err)
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var typ, relType, relID string
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.Read, &n.ReadAt, &relType, &relID, &n.Metadata, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	if relType != "" || relID != "" {
		n.RelatedEntity = &RelatedEntity{Type: relType, EntityID: relID}
	}
	return &n, nil
}
