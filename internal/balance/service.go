package balance

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/kassa-fin/kassa/internal/periods"
	"github.com/kassa-fin/kassa/internal/shared"
)

// Service computes per-owner balance sheets from ledger rows. Sheets are
// cached per period; concurrent requests for the same period share one
// computation.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
	now   func() time.Time
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Sheet returns the balance sheet for a period, from cache when possible.
func (s *Service) Sheet(ctx context.Context, periodID int64) (Sheet, error) {
	if sheet, ok := s.cache.Get(ctx, periodID); ok {
		return sheet, nil
	}
	result, err, _ := s.group.Do(strconv.FormatInt(periodID, 10), func() (any, error) {
		sheet, err := s.Compute(ctx, periodID)
		if err != nil {
			return Sheet{}, err
		}
		if s.cache != nil {
			_ = s.cache.Set(ctx, sheet)
		}
		return sheet, nil
	})
	if err != nil {
		return Sheet{}, err
	}
	return result.(Sheet), nil
}

// Compute recalculates the sheet from ledger rows, bypassing the cache.
// The carry-forward processor uses this directly for its read phase.
func (s *Service) Compute(ctx context.Context, periodID int64) (Sheet, error) {
	exists, err := s.repo.PeriodExists(ctx, periodID)
	if err != nil {
		return Sheet{}, err
	}
	if !exists {
		return Sheet{}, periods.ErrPeriodNotFound
	}

	contributions, err := s.repo.SumContributionsByOwner(ctx, periodID)
	if err != nil {
		return Sheet{}, err
	}
	expensesPaid, err := s.repo.SumExpensesByPayer(ctx, periodID)
	if err != nil {
		return Sheet{}, err
	}
	charges, err := s.repo.SumChargesByOwner(ctx, periodID)
	if err != nil {
		return Sheet{}, err
	}
	shares, err := s.repo.SumSharesByOwner(ctx, periodID)
	if err != nil {
		return Sheet{}, err
	}

	byOwner := map[int64]*OwnerBalance{}
	row := func(ownerID int64) *OwnerBalance {
		if r, ok := byOwner[ownerID]; ok {
			return r
		}
		r := &OwnerBalance{
			OwnerID:       ownerID,
			Contributions: decimal.Zero,
			ExpensesPaid:  decimal.Zero,
			Charges:       decimal.Zero,
		}
		byOwner[ownerID] = r
		return r
	}
	for _, oa := range contributions {
		row(oa.OwnerID).Contributions = oa.Amount
	}
	for _, oa := range expensesPaid {
		row(oa.OwnerID).ExpensesPaid = oa.Amount
	}
	for _, oa := range charges {
		row(oa.OwnerID).Charges = oa.Amount
	}
	for _, oa := range shares {
		r := row(oa.OwnerID)
		r.Charges = r.Charges.Add(oa.Amount)
	}

	sheet := Sheet{
		PeriodID:           periodID,
		TotalContributions: decimal.Zero,
		TotalCharges:       decimal.Zero,
		TotalBalance:       decimal.Zero,
		ComputedAt:         s.now(),
	}
	for _, r := range byOwner {
		r.Balance = r.Contributions.Sub(r.Charges)
		sheet.TotalContributions = sheet.TotalContributions.Add(r.Contributions)
		sheet.TotalCharges = sheet.TotalCharges.Add(r.Charges)
		sheet.TotalBalance = sheet.TotalBalance.Add(r.Balance)
		sheet.Rows = append(sheet.Rows, *r)
	}
	sort.Slice(sheet.Rows, func(i, j int) bool { return sheet.Rows[i].OwnerID < sheet.Rows[j].OwnerID })
	return sheet, nil
}

// OwnerBalance is the single-owner projection of the period sheet.
func (s *Service) OwnerBalance(ctx context.Context, periodID, ownerID int64) (OwnerBalance, error) {
	sheet, err := s.Sheet(ctx, periodID)
	if err != nil {
		return OwnerBalance{}, err
	}
	for _, r := range sheet.Rows {
		if r.OwnerID == ownerID {
			return r, nil
		}
	}
	return OwnerBalance{}, shared.NotFoundf("owner %d has no ledger rows in period %d", ownerID, periodID)
}

// InvalidatePeriod drops the cached sheet after a ledger write.
func (s *Service) InvalidatePeriod(ctx context.Context, periodID int64) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, periodID)
	}
}
