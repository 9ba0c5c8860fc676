package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/allocation"
	"github.com/kassa-fin/kassa/internal/owners"
	"github.com/kassa-fin/kassa/internal/periods"
	"github.com/kassa-fin/kassa/internal/shared"
)

// OwnerDirectory resolves owners for allocation.
type OwnerDirectory interface {
	Get(ctx context.Context, id int64) (owners.Owner, error)
	List(ctx context.Context) ([]owners.Owner, error)
}

// BalanceInvalidator drops cached balance sheets after a ledger write.
type BalanceInvalidator interface {
	InvalidatePeriod(ctx context.Context, periodID int64)
}

// Service is the ledger store. Every mutation locks the owning period row
// and refuses to proceed unless the period is open; allocated expense
// shares are written in the same transaction as the expense.
type Service struct {
	repo        Repository
	directory   OwnerDirectory
	invalidator BalanceInvalidator
	now         func() time.Time
}

func NewService(repo Repository, directory OwnerDirectory, invalidator BalanceInvalidator) *Service {
	return &Service{repo: repo, directory: directory, invalidator: invalidator, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) invalidate(ctx context.Context, periodID int64) {
	if s.invalidator != nil {
		s.invalidator.InvalidatePeriod(ctx, periodID)
	}
}

func lockOpenPeriod(ctx context.Context, tx TxRepository, periodID int64) error {
	period, err := tx.LockPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period.Status != periods.StatusOpen {
		return periods.ErrNotOpen
	}
	return nil
}

// --- Contributions ---

func (s *Service) CreateContribution(ctx context.Context, in CreateContributionInput) (Contribution, error) {
	if err := in.Validate(); err != nil {
		return Contribution{}, err
	}
	if _, err := s.directory.Get(ctx, in.OwnerID); err != nil {
		return Contribution{}, err
	}
	var created Contribution
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := lockOpenPeriod(ctx, tx, in.PeriodID); err != nil {
			return err
		}
		var err error
		created, err = tx.InsertContribution(ctx, in)
		return err
	})
	if err != nil {
		return Contribution{}, err
	}
	s.invalidate(ctx, created.PeriodID)
	return created, nil
}

func (s *Service) UpdateContribution(ctx context.Context, id int64, in UpdateContributionInput) (Contribution, error) {
	if err := in.Validate(); err != nil {
		return Contribution{}, err
	}
	var updated Contribution
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetContributionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := lockOpenPeriod(ctx, tx, current.PeriodID); err != nil {
			return err
		}
		updated, err = tx.UpdateContribution(ctx, id, in)
		return err
	})
	if err != nil {
		return Contribution{}, err
	}
	s.invalidate(ctx, updated.PeriodID)
	return updated, nil
}

func (s *Service) DeleteContribution(ctx context.Context, id int64) error {
	var periodID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetContributionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := lockOpenPeriod(ctx, tx, current.PeriodID); err != nil {
			return err
		}
		periodID = current.PeriodID
		return tx.DeleteContribution(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, periodID)
	return nil
}

func (s *Service) GetContribution(ctx context.Context, id int64) (Contribution, error) {
	return s.repo.GetContribution(ctx, id)
}

// ListContributions returns one page of a period's contributions together
// with the pagination metadata.
func (s *Service) ListContributions(ctx context.Context, periodID int64, page, perPage int) ([]Contribution, shared.Pagination, error) {
	total, err := s.repo.CountContributions(ctx, periodID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	items, err := s.repo.ListContributions(ctx, periodID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, p, nil
}

// --- Expenses ---

func (s *Service) CreateExpense(ctx context.Context, in CreateExpenseInput) (Expense, error) {
	if err := in.Validate(); err != nil {
		return Expense{}, err
	}
	if _, err := s.directory.Get(ctx, in.PaidByOwnerID); err != nil {
		return Expense{}, err
	}
	var created Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := lockOpenPeriod(ctx, tx, in.PeriodID); err != nil {
			return err
		}
		var err error
		created, err = tx.InsertExpense(ctx, in)
		if err != nil {
			return err
		}
		return s.materializeShares(ctx, tx, created)
	})
	if err != nil {
		return Expense{}, err
	}
	s.invalidate(ctx, created.PeriodID)
	return created, nil
}

func (s *Service) UpdateExpense(ctx context.Context, id int64, in UpdateExpenseInput) (Expense, error) {
	if err := in.Validate(); err != nil {
		return Expense{}, err
	}
	var updated Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetExpenseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := lockOpenPeriod(ctx, tx, current.PeriodID); err != nil {
			return err
		}
		updated, err = tx.UpdateExpense(ctx, id, in)
		if err != nil {
			return err
		}
		return s.materializeShares(ctx, tx, updated)
	})
	if err != nil {
		return Expense{}, err
	}
	s.invalidate(ctx, updated.PeriodID)
	return updated, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id int64) error {
	var periodID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetExpenseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := lockOpenPeriod(ctx, tx, current.PeriodID); err != nil {
			return err
		}
		periodID = current.PeriodID
		if err := tx.ReplaceExpenseShares(ctx, id, nil); err != nil {
			return err
		}
		return tx.DeleteExpense(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, periodID)
	return nil
}

func (s *Service) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

func (s *Service) ListExpenses(ctx context.Context, periodID int64) ([]Expense, error) {
	return s.repo.ListExpenses(ctx, periodID)
}

func (s *Service) GetExpenseShares(ctx context.Context, expenseID int64) ([]ExpenseShare, error) {
	if _, err := s.repo.GetExpense(ctx, expenseID); err != nil {
		return nil, err
	}
	return s.repo.ListExpenseShares(ctx, expenseID)
}

// materializeShares recomputes the allocated shares of an expense inside the
// surrounding transaction. Expenses without a budget item, or with a NONE
// strategy item, carry no shares.
func (s *Service) materializeShares(ctx context.Context, tx TxRepository, expense Expense) error {
	if expense.BudgetItemID == nil {
		return tx.ReplaceExpenseShares(ctx, expense.ID, nil)
	}
	item, err := tx.GetBudgetItem(ctx, *expense.BudgetItemID)
	if err != nil {
		return err
	}
	if item.PeriodID != expense.PeriodID {
		return ErrBudgetItemPeriodMismatch
	}
	if item.Strategy == allocation.StrategyNone {
		return tx.ReplaceExpenseShares(ctx, expense.ID, nil)
	}

	participants, err := s.participantsFor(ctx, tx, item, expense.PeriodID)
	if err != nil {
		return err
	}
	shares, err := allocation.Split(expense.Amount, item.Strategy, participants)
	if err != nil {
		return err
	}
	return tx.ReplaceExpenseShares(ctx, expense.ID, shares)
}

func (s *Service) participantsFor(ctx context.Context, tx TxRepository, item BudgetItem, periodID int64) ([]allocation.Participant, error) {
	switch item.Strategy {
	case allocation.StrategyProportional:
		all, err := s.directory.List(ctx)
		if err != nil {
			return nil, err
		}
		participants := make([]allocation.Participant, 0, len(all))
		for _, o := range all {
			participants = append(participants, allocation.Participant{OwnerID: o.ID, Weight: o.ShareWeight})
		}
		return participants, nil
	case allocation.StrategyFixedFee:
		all, err := s.directory.List(ctx)
		if err != nil {
			return nil, err
		}
		var participants []allocation.Participant
		for _, o := range all {
			if !o.IsActive {
				continue
			}
			participants = append(participants, allocation.Participant{OwnerID: o.ID, Weight: decimal.NewFromInt(1)})
		}
		return participants, nil
	case allocation.StrategyUsageBased:
		consumption, err := tx.SumConsumptionByOwner(ctx, periodID, *item.MeterType)
		if err != nil {
			return nil, err
		}
		participants := make([]allocation.Participant, 0, len(consumption))
		for _, oc := range consumption {
			participants = append(participants, allocation.Participant{OwnerID: oc.OwnerID, Weight: oc.Consumption})
		}
		return participants, nil
	default:
		return nil, nil
	}
}

// --- Service charges ---

func (s *Service) CreateCharge(ctx context.Context, in CreateChargeInput) (ServiceCharge, error) {
	if err := in.Validate(); err != nil {
		return ServiceCharge{}, err
	}
	if _, err := s.directory.Get(ctx, in.OwnerID); err != nil {
		return ServiceCharge{}, err
	}
	var created ServiceCharge
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := lockOpenPeriod(ctx, tx, in.PeriodID); err != nil {
			return err
		}
		var err error
		created, err = tx.InsertCharge(ctx, in)
		return err
	})
	if err != nil {
		return ServiceCharge{}, err
	}
	s.invalidate(ctx, created.PeriodID)
	return created, nil
}

func (s *Service) UpdateCharge(ctx context.Context, id int64, in UpdateChargeInput) (ServiceCharge, error) {
	if err := in.Validate(); err != nil {
		return ServiceCharge{}, err
	}
	var updated ServiceCharge
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetChargeForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := lockOpenPeriod(ctx, tx, current.PeriodID); err != nil {
			return err
		}
		updated, err = tx.UpdateCharge(ctx, id, in)
		return err
	})
	if err != nil {
		return ServiceCharge{}, err
	}
	s.invalidate(ctx, updated.PeriodID)
	return updated, nil
}

func (s *Service) DeleteCharge(ctx context.Context, id int64) error {
	var periodID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetChargeForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := lockOpenPeriod(ctx, tx, current.PeriodID); err != nil {
			return err
		}
		periodID = current.PeriodID
		return tx.DeleteCharge(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, periodID)
	return nil
}

func (s *Service) GetCharge(ctx context.Context, id int64) (ServiceCharge, error) {
	return s.repo.GetCharge(ctx, id)
}

func (s *Service) ListCharges(ctx context.Context, periodID int64) ([]ServiceCharge, error) {
	return s.repo.ListCharges(ctx, periodID)
}

// --- Budget items ---

func (s *Service) CreateBudgetItem(ctx context.Context, in CreateBudgetItemInput) (BudgetItem, error) {
	if err := in.Validate(); err != nil {
		return BudgetItem{}, err
	}
	var created BudgetItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := lockOpenPeriod(ctx, tx, in.PeriodID); err != nil {
			return err
		}
		var err error
		created, err = tx.InsertBudgetItem(ctx, in)
		return err
	})
	if err != nil {
		return BudgetItem{}, err
	}
	return created, nil
}

func (s *Service) ListBudgetItems(ctx context.Context, periodID int64) ([]BudgetItemUtilization, error) {
	return s.repo.ListBudgetItems(ctx, periodID)
}

// --- Utility readings ---

func (s *Service) CreateReading(ctx context.Context, in CreateReadingInput) (UtilityReading, error) {
	if err := in.Validate(); err != nil {
		return UtilityReading{}, err
	}
	if _, err := s.directory.Get(ctx, in.OwnerID); err != nil {
		return UtilityReading{}, err
	}
	var created UtilityReading
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := lockOpenPeriod(ctx, tx, in.PeriodID); err != nil {
			return err
		}
		var err error
		created, err = tx.InsertReading(ctx, in)
		return err
	})
	if err != nil {
		return UtilityReading{}, err
	}
	return created, nil
}

func (s *Service) ListReadings(ctx context.Context, periodID int64) ([]UtilityReading, error) {
	return s.repo.ListReadings(ctx, periodID)
}
