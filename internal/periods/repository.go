package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kassa-fin/kassa/internal/platform/db"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	Insert(ctx context.Context, in CreateInput) (Period, error)
	Get(ctx context.Context, id int64) (Period, error)
	List(ctx context.Context) ([]Period, error)
	ListOpen(ctx context.Context) ([]Period, error)
}

// TxRepository exposes period mutations that require a row lock.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Period, error)
	SetStatus(ctx context.Context, id int64, status Status, closedAt *time.Time) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, name, description, start_date, end_date, status, closed_at, created_at, updated_at`

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Insert(ctx context.Context, in CreateInput) (Period, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO service_periods (name, description, start_date, end_date, status)
VALUES ($1, $2, $3, $4, $5) RETURNING `+periodColumns,
		in.Name, in.Description, in.StartDate, in.EndDate, StatusOpen)
	period, err := scanPeriod(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Period{}, ErrDuplicateName
		}
		return Period{}, err
	}
	return period, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM service_periods WHERE id = $1`, id)
	period, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return period, err
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	return r.list(ctx, `SELECT `+periodColumns+` FROM service_periods ORDER BY start_date DESC`)
}

// ListOpen returns open periods, oldest first. Used by the balance warmup job.
func (r *repository) ListOpen(ctx context.Context) ([]Period, error) {
	return r.list(ctx, `SELECT `+periodColumns+` FROM service_periods WHERE status = 'OPEN' ORDER BY start_date`)
}

func (r *repository) list(ctx context.Context, query string) ([]Period, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Period
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, period)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM service_periods WHERE id = $1 FOR UPDATE`, id)
	period, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return period, err
}

func (t *txRepository) SetStatus(ctx context.Context, id int64, status Status, closedAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE service_periods SET status = $2, closed_at = $3, updated_at = NOW() WHERE id = $1`,
		id, status, closedAt)
	return err
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
