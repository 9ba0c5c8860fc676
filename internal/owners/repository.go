package owners

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Insert(ctx context.Context, in CreateInput) (Owner, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Owner, error)
	Get(ctx context.Context, id int64) (Owner, error)
	List(ctx context.Context) ([]Owner, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the postgres-backed owner directory.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const ownerColumns = `id, name, unit, share_weight, is_active, created_at, updated_at`

func (r *repository) Insert(ctx context.Context, in CreateInput) (Owner, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO owners (name, unit, share_weight, is_active)
VALUES ($1, $2, $3, $4) RETURNING `+ownerColumns,
		in.Name, in.Unit, in.ShareWeight, in.IsActive)
	return scanOwner(row)
}

func (r *repository) Update(ctx context.Context, id int64, in UpdateInput) (Owner, error) {
	row := r.pool.QueryRow(ctx, `UPDATE owners
SET name = $2, unit = $3, share_weight = $4, is_active = $5, updated_at = NOW()
WHERE id = $1 RETURNING `+ownerColumns,
		id, in.Name, in.Unit, in.ShareWeight, in.IsActive)
	owner, err := scanOwner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Owner{}, ErrOwnerNotFound
	}
	return owner, err
}

func (r *repository) Get(ctx context.Context, id int64) (Owner, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ownerColumns+` FROM owners WHERE id = $1`, id)
	owner, err := scanOwner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Owner{}, ErrOwnerNotFound
	}
	return owner, err
}

func (r *repository) List(ctx context.Context) ([]Owner, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ownerColumns+` FROM owners ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Owner
	for rows.Next() {
		owner, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, owner)
	}
	return out, rows.Err()
}

func scanOwner(row pgx.Row) (Owner, error) {
	var o Owner
	err := row.Scan(&o.ID, &o.Name, &o.Unit, &o.ShareWeight, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
