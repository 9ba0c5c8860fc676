package balance

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads per-owner aggregates for one period. The calculator is
// read-only; it never writes ledger rows.
type Repository interface {
	PeriodExists(ctx context.Context, periodID int64) (bool, error)
	SumContributionsByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error)
	SumExpensesByPayer(ctx context.Context, periodID int64) ([]OwnerAmount, error)
	SumChargesByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error)
	SumSharesByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) PeriodExists(ctx context.Context, periodID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_periods WHERE id = $1)`, periodID).Scan(&exists)
	return exists, err
}

func (r *repository) SumContributionsByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error) {
	return r.sums(ctx, `SELECT owner_id, SUM(amount) FROM contributions WHERE period_id = $1 GROUP BY owner_id`, periodID)
}

func (r *repository) SumExpensesByPayer(ctx context.Context, periodID int64) ([]OwnerAmount, error) {
	return r.sums(ctx, `SELECT paid_by_owner_id, SUM(amount) FROM expenses WHERE period_id = $1 GROUP BY paid_by_owner_id`, periodID)
}

func (r *repository) SumChargesByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error) {
	return r.sums(ctx, `SELECT owner_id, SUM(amount) FROM service_charges WHERE period_id = $1 GROUP BY owner_id`, periodID)
}

func (r *repository) SumSharesByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error) {
	return r.sums(ctx, `SELECT s.owner_id, SUM(s.amount) FROM expense_shares s
JOIN expenses e ON e.id = s.expense_id WHERE e.period_id = $1 GROUP BY s.owner_id`, periodID)
}

func (r *repository) sums(ctx context.Context, query string, periodID int64) ([]OwnerAmount, error) {
	rows, err := r.pool.Query(ctx, query, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OwnerAmount
	for rows.Next() {
		var oa OwnerAmount
		if err := rows.Scan(&oa.OwnerID, &oa.Amount); err != nil {
			return nil, err
		}
		out = append(out, oa)
	}
	return out, rows.Err()
}
