package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kassa-fin/kassa/internal/allocation"
	"github.com/kassa-fin/kassa/internal/periods"
	"github.com/kassa-fin/kassa/internal/platform/db"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error

	GetContribution(ctx context.Context, id int64) (Contribution, error)
	ListContributions(ctx context.Context, periodID int64, limit, offset int) ([]Contribution, error)
	CountContributions(ctx context.Context, periodID int64) (int, error)
	GetExpense(ctx context.Context, id int64) (Expense, error)
	ListExpenses(ctx context.Context, periodID int64) ([]Expense, error)
	ListExpenseShares(ctx context.Context, expenseID int64) ([]ExpenseShare, error)
	GetCharge(ctx context.Context, id int64) (ServiceCharge, error)
	ListCharges(ctx context.Context, periodID int64) ([]ServiceCharge, error)
	GetBudgetItem(ctx context.Context, id int64) (BudgetItem, error)
	ListBudgetItems(ctx context.Context, periodID int64) ([]BudgetItemUtilization, error)
	ListReadings(ctx context.Context, periodID int64) ([]UtilityReading, error)
}

// TxRepository groups the writes of one atomic ledger mutation. LockPeriod
// must be called first so the period's open state cannot change underneath
// the write.
type TxRepository interface {
	LockPeriod(ctx context.Context, periodID int64) (periods.Period, error)

	InsertContribution(ctx context.Context, in CreateContributionInput) (Contribution, error)
	GetContributionForUpdate(ctx context.Context, id int64) (Contribution, error)
	UpdateContribution(ctx context.Context, id int64, in UpdateContributionInput) (Contribution, error)
	DeleteContribution(ctx context.Context, id int64) error

	InsertExpense(ctx context.Context, in CreateExpenseInput) (Expense, error)
	GetExpenseForUpdate(ctx context.Context, id int64) (Expense, error)
	UpdateExpense(ctx context.Context, id int64, in UpdateExpenseInput) (Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ReplaceExpenseShares(ctx context.Context, expenseID int64, shares []allocation.Share) error

	InsertCharge(ctx context.Context, in CreateChargeInput) (ServiceCharge, error)
	GetChargeForUpdate(ctx context.Context, id int64) (ServiceCharge, error)
	UpdateCharge(ctx context.Context, id int64, in UpdateChargeInput) (ServiceCharge, error)
	DeleteCharge(ctx context.Context, id int64) error

	InsertBudgetItem(ctx context.Context, in CreateBudgetItemInput) (BudgetItem, error)
	GetBudgetItem(ctx context.Context, id int64) (BudgetItem, error)
	InsertReading(ctx context.Context, in CreateReadingInput) (UtilityReading, error)
	SumConsumptionByOwner(ctx context.Context, periodID int64, meterType string) ([]OwnerConsumption, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const (
	contributionColumns = `id, period_id, owner_id, amount, date, comment, carry_forward_run_id, created_at, updated_at`
	expenseColumns      = `id, period_id, paid_by_owner_id, budget_item_id, amount, payment_type, date, vendor, description, created_at, updated_at`
	chargeColumns       = `id, period_id, owner_id, amount, description, carry_forward_run_id, created_at, updated_at`
	budgetItemColumns   = `id, period_id, payment_type, budgeted_amount, allocation_strategy, meter_type, created_at`
	readingColumns      = `id, period_id, owner_id, meter_type, start_reading, end_reading, created_at`
)

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetContribution(ctx context.Context, id int64) (Contribution, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = $1`, id)
	c, err := scanContribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contribution{}, ErrContributionNotFound
	}
	return c, err
}

func (r *repository) ListContributions(ctx context.Context, periodID int64, limit, offset int) ([]Contribution, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE period_id = $1 ORDER BY date, id LIMIT $2 OFFSET $3`,
		periodID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) CountContributions(ctx context.Context, periodID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contributions WHERE period_id = $1`, periodID).Scan(&total)
	return total, err
}

func (r *repository) GetExpense(ctx context.Context, id int64) (Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrExpenseNotFound
	}
	return e, err
}

func (r *repository) ListExpenses(ctx context.Context, periodID int64) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE period_id = $1 ORDER BY date, id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) ListExpenseShares(ctx context.Context, expenseID int64) ([]ExpenseShare, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, expense_id, owner_id, amount, created_at FROM expense_shares WHERE expense_id = $1 ORDER BY owner_id`, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpenseShare
	for rows.Next() {
		var s ExpenseShare
		if err := rows.Scan(&s.ID, &s.ExpenseID, &s.OwnerID, &s.Amount, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) GetCharge(ctx context.Context, id int64) (ServiceCharge, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chargeColumns+` FROM service_charges WHERE id = $1`, id)
	c, err := scanCharge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServiceCharge{}, ErrChargeNotFound
	}
	return c, err
}

func (r *repository) ListCharges(ctx context.Context, periodID int64) ([]ServiceCharge, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+chargeColumns+` FROM service_charges WHERE period_id = $1 ORDER BY id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceCharge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) GetBudgetItem(ctx context.Context, id int64) (BudgetItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+budgetItemColumns+` FROM budget_items WHERE id = $1`, id)
	item, err := scanBudgetItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return BudgetItem{}, ErrBudgetItemNotFound
	}
	return item, err
}

// ListBudgetItems returns each item together with the actual spend recorded
// against its payment type in the same period.
func (r *repository) ListBudgetItems(ctx context.Context, periodID int64) ([]BudgetItemUtilization, error) {
	rows, err := r.pool.Query(ctx, `SELECT b.id, b.period_id, b.payment_type, b.budgeted_amount, b.allocation_strategy, b.meter_type, b.created_at,
COALESCE((SELECT SUM(e.amount) FROM expenses e WHERE e.period_id = b.period_id AND e.payment_type = b.payment_type), 0) AS actual
FROM budget_items b WHERE b.period_id = $1 ORDER BY b.payment_type`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BudgetItemUtilization
	for rows.Next() {
		var u BudgetItemUtilization
		if err := rows.Scan(&u.ID, &u.PeriodID, &u.PaymentType, &u.BudgetedAmount, &u.Strategy, &u.MeterType, &u.CreatedAt, &u.ActualAmount); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *repository) ListReadings(ctx context.Context, periodID int64) ([]UtilityReading, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+readingColumns+` FROM utility_readings WHERE period_id = $1 ORDER BY meter_type, owner_id, id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UtilityReading
	for rows.Next() {
		var u UtilityReading
		if err := rows.Scan(&u.ID, &u.PeriodID, &u.OwnerID, &u.MeterType, &u.StartReading, &u.EndReading, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
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

func (t *txRepository) InsertContribution(ctx context.Context, in CreateContributionInput) (Contribution, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO contributions (period_id, owner_id, amount, date, comment)
VALUES ($1, $2, $3, $4, $5) RETURNING `+contributionColumns,
		in.PeriodID, in.OwnerID, in.Amount, in.Date, in.Comment)
	return scanContribution(row)
}

func (t *txRepository) GetContributionForUpdate(ctx context.Context, id int64) (Contribution, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = $1 FOR UPDATE`, id)
	c, err := scanContribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contribution{}, ErrContributionNotFound
	}
	return c, err
}

func (t *txRepository) UpdateContribution(ctx context.Context, id int64, in UpdateContributionInput) (Contribution, error) {
	row := t.tx.QueryRow(ctx, `UPDATE contributions SET amount = $2, date = $3, comment = $4, updated_at = NOW()
WHERE id = $1 RETURNING `+contributionColumns,
		id, in.Amount, in.Date, in.Comment)
	return scanContribution(row)
}

func (t *txRepository) DeleteContribution(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM contributions WHERE id = $1`, id)
	return err
}

func (t *txRepository) InsertExpense(ctx context.Context, in CreateExpenseInput) (Expense, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO expenses (period_id, paid_by_owner_id, budget_item_id, amount, payment_type, date, vendor, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+expenseColumns,
		in.PeriodID, in.PaidByOwnerID, in.BudgetItemID, in.Amount, in.PaymentType, in.Date, in.Vendor, in.Description)
	return scanExpense(row)
}

func (t *txRepository) GetExpenseForUpdate(ctx context.Context, id int64) (Expense, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1 FOR UPDATE`, id)
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrExpenseNotFound
	}
	return e, err
}

func (t *txRepository) UpdateExpense(ctx context.Context, id int64, in UpdateExpenseInput) (Expense, error) {
	row := t.tx.QueryRow(ctx, `UPDATE expenses SET budget_item_id = $2, amount = $3, payment_type = $4, date = $5, vendor = $6, description = $7, updated_at = NOW()
WHERE id = $1 RETURNING `+expenseColumns,
		id, in.BudgetItemID, in.Amount, in.PaymentType, in.Date, in.Vendor, in.Description)
	return scanExpense(row)
}

func (t *txRepository) DeleteExpense(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	return err
}

// ReplaceExpenseShares rewrites the allocated shares for an expense. Zero
// amounts are skipped; rows store only non-zero allocations.
func (t *txRepository) ReplaceExpenseShares(ctx context.Context, expenseID int64, shares []allocation.Share) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM expense_shares WHERE expense_id = $1`, expenseID); err != nil {
		return err
	}
	for _, share := range shares {
		if share.Amount.IsZero() {
			continue
		}
		if _, err := t.tx.Exec(ctx, `INSERT INTO expense_shares (expense_id, owner_id, amount) VALUES ($1, $2, $3)`,
			expenseID, share.OwnerID, share.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) InsertCharge(ctx context.Context, in CreateChargeInput) (ServiceCharge, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO service_charges (period_id, owner_id, amount, description)
VALUES ($1, $2, $3, $4) RETURNING `+chargeColumns,
		in.PeriodID, in.OwnerID, in.Amount, in.Description)
	return scanCharge(row)
}

func (t *txRepository) GetChargeForUpdate(ctx context.Context, id int64) (ServiceCharge, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+chargeColumns+` FROM service_charges WHERE id = $1 FOR UPDATE`, id)
	c, err := scanCharge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServiceCharge{}, ErrChargeNotFound
	}
	return c, err
}

func (t *txRepository) UpdateCharge(ctx context.Context, id int64, in UpdateChargeInput) (ServiceCharge, error) {
	row := t.tx.QueryRow(ctx, `UPDATE service_charges SET amount = $2, description = $3, updated_at = NOW()
WHERE id = $1 RETURNING `+chargeColumns,
		id, in.Amount, in.Description)
	return scanCharge(row)
}

func (t *txRepository) DeleteCharge(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM service_charges WHERE id = $1`, id)
	return err
}

func (t *txRepository) InsertBudgetItem(ctx context.Context, in CreateBudgetItemInput) (BudgetItem, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO budget_items (period_id, payment_type, budgeted_amount, allocation_strategy, meter_type)
VALUES ($1, $2, $3, $4, $5) RETURNING `+budgetItemColumns,
		in.PeriodID, in.PaymentType, in.BudgetedAmount, in.Strategy, in.MeterType)
	item, err := scanBudgetItem(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return BudgetItem{}, ErrDuplicateBudgetItem
		}
		return BudgetItem{}, err
	}
	return item, nil
}

func (t *txRepository) GetBudgetItem(ctx context.Context, id int64) (BudgetItem, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+budgetItemColumns+` FROM budget_items WHERE id = $1`, id)
	item, err := scanBudgetItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return BudgetItem{}, ErrBudgetItemNotFound
	}
	return item, err
}

func (t *txRepository) InsertReading(ctx context.Context, in CreateReadingInput) (UtilityReading, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO utility_readings (period_id, owner_id, meter_type, start_reading, end_reading)
VALUES ($1, $2, $3, $4, $5) RETURNING `+readingColumns,
		in.PeriodID, in.OwnerID, in.MeterType, in.StartReading, in.EndReading)
	var u UtilityReading
	err := row.Scan(&u.ID, &u.PeriodID, &u.OwnerID, &u.MeterType, &u.StartReading, &u.EndReading, &u.CreatedAt)
	return u, err
}

func (t *txRepository) SumConsumptionByOwner(ctx context.Context, periodID int64, meterType string) ([]OwnerConsumption, error) {
	rows, err := t.tx.Query(ctx, `SELECT owner_id, SUM(end_reading - start_reading)
FROM utility_readings WHERE period_id = $1 AND meter_type = $2 GROUP BY owner_id ORDER BY owner_id`, periodID, meterType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OwnerConsumption
	for rows.Next() {
		var oc OwnerConsumption
		if err := rows.Scan(&oc.OwnerID, &oc.Consumption); err != nil {
			return nil, err
		}
		out = append(out, oc)
	}
	return out, rows.Err()
}

func scanContribution(row pgx.Row) (Contribution, error) {
	var c Contribution
	err := row.Scan(&c.ID, &c.PeriodID, &c.OwnerID, &c.Amount, &c.Date, &c.Comment, &c.CarryForwardRunID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.PeriodID, &e.PaidByOwnerID, &e.BudgetItemID, &e.Amount, &e.PaymentType, &e.Date, &e.Vendor, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func scanCharge(row pgx.Row) (ServiceCharge, error) {
	var c ServiceCharge
	err := row.Scan(&c.ID, &c.PeriodID, &c.OwnerID, &c.Amount, &c.Description, &c.CarryForwardRunID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanBudgetItem(row pgx.Row) (BudgetItem, error) {
	var b BudgetItem
	err := row.Scan(&b.ID, &b.PeriodID, &b.PaymentType, &b.BudgetedAmount, &b.Strategy, &b.MeterType, &b.CreatedAt)
	return b, err
}
