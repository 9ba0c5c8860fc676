package carryforward

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/balance"
	"github.com/kassa-fin/kassa/internal/periods"
	"github.com/kassa-fin/kassa/internal/shared"
)

// BalanceSource supplies the closing balances of the source period.
type BalanceSource interface {
	Compute(ctx context.Context, periodID int64) (balance.Sheet, error)
}

// BalanceInvalidator drops cached balance sheets after opening rows land.
type BalanceInvalidator interface {
	InvalidatePeriod(ctx context.Context, periodID int64)
}

// AuditPort records carry-forward runs.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// WarmupQueue schedules a balance cache warmup for a period.
type WarmupQueue interface {
	EnqueueBalanceWarmupPeriod(ctx context.Context, periodID int64) error
}

// Service carries a closed period's ending balances into the next period's
// opening rows. The operation is two-phase: the source must already be
// CLOSED when its balances are snapshotted, and the write transaction
// re-locks it and verifies closed_at is unchanged, so a reopen between the
// phases conflicts instead of committing a stale snapshot.
type Service struct {
	repo        Repository
	balances    BalanceSource
	invalidator BalanceInvalidator
	audit       AuditPort
	warmups     WarmupQueue
	now         func() time.Time
}

func NewService(repo Repository, balances BalanceSource, invalidator BalanceInvalidator, audit AuditPort) *Service {
	return &Service{repo: repo, balances: balances, invalidator: invalidator, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithWarmups queues a cache warmup for the target period after each run.
func (s *Service) WithWarmups(q WarmupQueue) {
	s.warmups = q
}

// Run executes a carry-forward from one period into another. Positive
// balances become opening contributions, negative ones opening charges,
// zero balances write nothing. Either every opening row lands or none do.
func (s *Service) Run(ctx context.Context, fromPeriodID, toPeriodID, actorID int64) (Summary, error) {
	if fromPeriodID == toPeriodID {
		return Summary{}, ErrSamePeriod
	}

	source, err := s.repo.GetPeriod(ctx, fromPeriodID)
	if err != nil {
		return Summary{}, err
	}
	if source.Status != periods.StatusClosed {
		return Summary{}, ErrSourceNotClosed
	}
	snapshotClosedAt := source.ClosedAt

	sheet, err := s.balances.Compute(ctx, fromPeriodID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Run: Run{
			ID:           uuid.New(),
			FromPeriodID: fromPeriodID,
			ToPeriodID:   toPeriodID,
			TotalCredits: decimal.Zero,
			TotalDebts:   decimal.Zero,
			CreatedAt:    s.now(),
		},
	}
	for _, row := range sheet.Rows {
		if row.Balance.IsZero() {
			continue
		}
		summary.Run.OwnersProcessed++
		rowType := RowTypeContribution
		if row.Balance.IsNegative() {
			rowType = RowTypeServiceCharge
			summary.Run.TotalDebts = summary.Run.TotalDebts.Add(row.Balance.Abs())
		} else {
			summary.Run.TotalCredits = summary.Run.TotalCredits.Add(row.Balance)
		}
		summary.Items = append(summary.Items, Item{OwnerID: row.OwnerID, Amount: row.Balance, RowType: rowType})
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		from, err := tx.LockPeriod(ctx, fromPeriodID)
		if err != nil {
			return err
		}
		if from.Status != periods.StatusClosed {
			return ErrSourceNotClosed
		}
		if !equalClosedAt(from.ClosedAt, snapshotClosedAt) {
			return ErrSourceChanged
		}
		to, err := tx.LockPeriod(ctx, toPeriodID)
		if err != nil {
			return err
		}
		if to.Status != periods.StatusOpen {
			return periods.ErrNotOpen
		}

		// The run row goes in first; opening rows reference it.
		if err := tx.InsertRun(ctx, summary.Run); err != nil {
			return err
		}
		for _, item := range summary.Items {
			if item.RowType == RowTypeContribution {
				if err := tx.InsertOpeningContribution(ctx, summary.Run.ID, toPeriodID, item.OwnerID, item.Amount, to.StartDate); err != nil {
					return err
				}
				continue
			}
			if err := tx.InsertOpeningCharge(ctx, summary.Run.ID, toPeriodID, item.OwnerID, item.Amount.Abs()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidatePeriod(ctx, toPeriodID)
	}
	if s.warmups != nil {
		_ = s.warmups.EnqueueBalanceWarmupPeriod(ctx, toPeriodID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "carryforward.run",
			Entity:   "carry_forward_run",
			EntityID: summary.Run.ID.String(),
			Meta: map[string]any{
				"from_period_id": fromPeriodID,
				"to_period_id":   toPeriodID,
				"owners":         summary.Run.OwnersProcessed,
				"total_credits":  summary.Run.TotalCredits.String(),
				"total_debts":    summary.Run.TotalDebts.String(),
			},
			At: s.now(),
		})
	}
	return summary, nil
}

// Runs lists the carry-forward runs that wrote into a period.
func (s *Service) Runs(ctx context.Context, toPeriodID int64) ([]Run, error) {
	return s.repo.ListRuns(ctx, toPeriodID)
}

// OpeningRows lists the ledger rows carry-forward wrote into a period.
func (s *Service) OpeningRows(ctx context.Context, periodID int64) (OpeningRows, error) {
	return s.repo.ListOpeningRows(ctx, periodID)
}

func equalClosedAt(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
