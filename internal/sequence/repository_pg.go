package sequence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabline/fabline/internal/platform/db"
)

const counterColumns = `entity, prefix, separator, year_suffix, start_number, current, updated_at`

// nextCounterSQL seeds or increments the counter in a single statement; the
// row lock taken by ON CONFLICT serializes concurrent callers.
const nextCounterSQL = `
	INSERT INTO sequence_counters (entity, prefix, separator, year_suffix, start_number, current, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5, NOW())
	ON CONFLICT (entity) DO UPDATE
	SET current = sequence_counters.current + 1, updated_at = NOW()
	RETURNING ` + counterColumns

const configureCounterSQL = `
	INSERT INTO sequence_counters (entity, prefix, separator, year_suffix, start_number, current, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5 - 1, NOW())
	ON CONFLICT (entity) DO UPDATE
	SET prefix = EXCLUDED.prefix,
	    separator = EXCLUDED.separator,
	    year_suffix = EXCLUDED.year_suffix,
	    start_number = EXCLUDED.start_number,
	    current = GREATEST(sequence_counters.current, EXCLUDED.start_number - 1),
	    updated_at = NOW()
	RETURNING ` + counterColumns

type pgRepository struct {
	db db.DBTX
}

// NewPGRepository constructs a PostgreSQL counter store.
func NewPGRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{db: pool}
}

func (r *pgRepository) Next(ctx context.Context, entity Entity, defaults Settings) (Counter, error) {
	row := r.db.QueryRow(ctx, nextCounterSQL,
		string(entity), defaults.Prefix, defaults.Separator, defaults.YearSuffix, defaults.StartNumber)
	c, err := scanCounter(row)
	return c, db.Wrap("sequence next", err)
}

func (r *pgRepository) Configure(ctx context.Context, entity Entity, s Settings) (Counter, error) {
	row := r.db.QueryRow(ctx, configureCounterSQL,
		string(entity), s.Prefix, s.Separator, s.YearSuffix, s.StartNumber)
	c, err := scanCounter(row)
	return c, db.Wrap("sequence configure", err)
}

func (r *pgRepository) Get(ctx context.Context, entity Entity) (Counter, error) {
	row := r.db.QueryRow(ctx, `SELECT `+counterColumns+` FROM sequence_counters WHERE entity = $1`, string(entity))
	c, err := scanCounter(row)
	return c, db.Wrap("sequence get", err)
}

func (r *pgRepository) List(ctx context.Context) ([]Counter, error) {
	rows, err := r.db.Query(ctx, `SELECT `+counterColumns+` FROM sequence_counters ORDER BY entity`)
	if err != nil {
		return nil, db.Wrap("sequence list", err)
	}
	defer rows.Close()
	var out []Counter
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, db.Wrap("sequence list scan", err)
		}
		out = append(out, c)
	}
	return out, db.Wrap("sequence list rows", rows.Err())
}

func scanCounter(row pgx.Row) (Counter, error) {
	var c Counter
	var entity string
	err := row.Scan(&entity, &c.Prefix, &c.Separator, &c.YearSuffix, &c.StartNumber, &c.Current, &c.UpdatedAt)
	c.Entity = Entity(entity)
	return c, err
}
