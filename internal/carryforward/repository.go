package carryforward

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/ledger"
	"github.com/kassa-fin/kassa/internal/periods"
	"github.com/kassa-fin/kassa/internal/platform/db"
)

type Repository interface {
	GetPeriod(ctx context.Context, periodID int64) (periods.Period, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	ListRuns(ctx context.Context, toPeriodID int64) ([]Run, error)
	ListOpeningRows(ctx context.Context, periodID int64) (OpeningRows, error)
}

// TxRepository groups the writes of one carry-forward run.
type TxRepository interface {
	LockPeriod(ctx context.Context, periodID int64) (periods.Period, error)
	InsertRun(ctx context.Context, run Run) error
	InsertOpeningContribution(ctx context.Context, runID uuid.UUID, periodID, ownerID int64, amount decimal.Decimal, date time.Time) error
	InsertOpeningCharge(ctx context.Context, runID uuid.UUID, periodID, ownerID int64, amount decimal.Decimal) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetPeriod(ctx context.Context, periodID int64) (periods.Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, description, start_date, end_date, status, closed_at, created_at, updated_at
FROM service_periods WHERE id = $1`, periodID)
	var p periods.Period
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.Period{}, periods.ErrPeriodNotFound
	}
	return p, err
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) ListRuns(ctx context.Context, toPeriodID int64) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, from_period_id, to_period_id, owners_processed, total_credits, total_debts, created_at
FROM carry_forward_runs WHERE to_period_id = $1 ORDER BY created_at`, toPeriodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.FromPeriodID, &run.ToPeriodID, &run.OwnersProcessed, &run.TotalCredits, &run.TotalDebts, &run.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListOpeningRows returns the ledger rows written by any carry-forward run
// into the period.
func (r *repository) ListOpeningRows(ctx context.Context, periodID int64) (OpeningRows, error) {
	var opening OpeningRows

	rows, err := r.pool.Query(ctx, `SELECT id, period_id, owner_id, amount, date, comment, carry_forward_run_id, created_at, updated_at
FROM contributions WHERE period_id = $1 AND carry_forward_run_id IS NOT NULL ORDER BY owner_id, id`, periodID)
	if err != nil {
		return OpeningRows{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c ledger.Contribution
		if err := rows.Scan(&c.ID, &c.PeriodID, &c.OwnerID, &c.Amount, &c.Date, &c.Comment, &c.CarryForwardRunID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return OpeningRows{}, err
		}
		opening.Contributions = append(opening.Contributions, c)
	}
	if err := rows.Err(); err != nil {
		return OpeningRows{}, err
	}

	chargeRows, err := r.pool.Query(ctx, `SELECT id, period_id, owner_id, amount, description, carry_forward_run_id, created_at, updated_at
FROM service_charges WHERE period_id = $1 AND carry_forward_run_id IS NOT NULL ORDER BY owner_id, id`, periodID)
	if err != nil {
		return OpeningRows{}, err
	}
	defer chargeRows.Close()
	for chargeRows.Next() {
		var c ledger.ServiceCharge
		if err := chargeRows.Scan(&c.ID, &c.PeriodID, &c.OwnerID, &c.Amount, &c.Description, &c.CarryForwardRunID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return OpeningRows{}, err
		}
		opening.Charges = append(opening.Charges, c)
	}
	return opening, chargeRows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) LockPeriod(ctx context.Context, periodID int64) (periods.Period, error) {
	row := t.tx.QueryRow(ctx, `SELECT id, name, description, start_date, end_date, status, closed_at, created_at, updated_at
FROM service_periods WHERE id = $1 FOR UPDATE`, periodID)
	var p periods.Period
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.Period{}, periods.ErrPeriodNotFound
	}
	return p, err
}

func (t *txRepository) InsertRun(ctx context.Context, run Run) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO carry_forward_runs (id, from_period_id, to_period_id, owners_processed, total_credits, total_debts, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.FromPeriodID, run.ToPeriodID, run.OwnersProcessed, run.TotalCredits, run.TotalDebts, run.CreatedAt)
	return err
}

func (t *txRepository) InsertOpeningContribution(ctx context.Context, runID uuid.UUID, periodID, ownerID int64, amount decimal.Decimal, date time.Time) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO contributions (period_id, owner_id, amount, date, comment, carry_forward_run_id)
VALUES ($1, $2, $3, $4, $5, $6)`,
		periodID, ownerID, amount, date, OpeningBalanceComment, runID)
	return err
}

func (t *txRepository) InsertOpeningCharge(ctx context.Context, runID uuid.UUID, periodID, ownerID int64, amount decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO service_charges (period_id, owner_id, amount, description, carry_forward_run_id)
VALUES ($1, $2, $3, $4, $5)`,
		periodID, ownerID, amount, OpeningDebtComment, runID)
	return err
}
