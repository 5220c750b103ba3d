package users

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabline/fabline/internal/platform/db"
)

const userColumns = `id, name, company, email, phone, role, password_hash, active, created_at`

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Get returns one user by id.
func (r *PGRepository) Get(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, db.Wrap("get user", err)
	}
	return u, nil
}

// FindByEmail returns one user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, db.Wrap("find user by email", err)
	}
	return u, nil
}

// ListByRoles returns active users holding any of roles.
func (r *PGRepository) ListByRoles(ctx context.Context, roles []Role) ([]User, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE active AND role = ANY($1) ORDER BY name`, names)
	if err != nil {
		return nil, db.Wrap("list users by role", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, db.Wrap("scan user", err)
		}
		out = append(out, *u)
	}
	return out, db.Wrap("list users rows", rows.Err())
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Company, &u.Email, &u.Phone, &role, &u.PasswordHash, &u.Active, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}
