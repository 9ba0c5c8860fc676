package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kassa-fin/kassa/internal/periods"
	"github.com/kassa-fin/kassa/internal/shared"
)

type stubRepository struct {
	periodIDs     map[int64]bool
	contributions map[int64][]OwnerAmount
	expensesPaid  map[int64][]OwnerAmount
	charges       map[int64][]OwnerAmount
	shares        map[int64][]OwnerAmount
	computeCalls  int
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		periodIDs:     map[int64]bool{1: true},
		contributions: map[int64][]OwnerAmount{},
		expensesPaid:  map[int64][]OwnerAmount{},
		charges:       map[int64][]OwnerAmount{},
		shares:        map[int64][]OwnerAmount{},
	}
}

func (s *stubRepository) PeriodExists(ctx context.Context, periodID int64) (bool, error) {
	s.computeCalls++
	return s.periodIDs[periodID], nil
}

func (s *stubRepository) SumContributionsByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error) {
	return s.contributions[periodID], nil
}

func (s *stubRepository) SumExpensesByPayer(ctx context.Context, periodID int64) ([]OwnerAmount, error) {
	return s.expensesPaid[periodID], nil
}

func (s *stubRepository) SumChargesByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error) {
	return s.charges[periodID], nil
}

func (s *stubRepository) SumSharesByOwner(ctx context.Context, periodID int64) ([]OwnerAmount, error) {
	return s.shares[periodID], nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Period 1 fixture: A contributed 1000 and carries 780 in allocated shares,
// B contributed 800 with 520 in shares; A paid a 1300 expense out of pocket.
func seedPeriodOne(repo *stubRepository) {
	repo.contributions[1] = []OwnerAmount{
		{OwnerID: 1, Amount: dec("1000.00")},
		{OwnerID: 2, Amount: dec("800.00")},
	}
	repo.expensesPaid[1] = []OwnerAmount{{OwnerID: 1, Amount: dec("1300.00")}}
	repo.shares[1] = []OwnerAmount{
		{OwnerID: 1, Amount: dec("780.00")},
		{OwnerID: 2, Amount: dec("520.00")},
	}
}

func TestComputeBalances(t *testing.T) {
	repo := newStubRepository()
	seedPeriodOne(repo)
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) })

	sheet, err := svc.Compute(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)

	// Rows come back sorted by owner id.
	a, b := sheet.Rows[0], sheet.Rows[1]
	assert.Equal(t, int64(1), a.OwnerID)
	assert.True(t, a.Balance.Equal(dec("220.00")))
	assert.True(t, a.ExpensesPaid.Equal(dec("1300.00")))
	assert.Equal(t, int64(2), b.OwnerID)
	assert.True(t, b.Balance.Equal(dec("280.00")))

	assert.True(t, sheet.TotalContributions.Equal(dec("1800.00")))
	assert.True(t, sheet.TotalCharges.Equal(dec("1300.00")))
	assert.True(t, sheet.TotalBalance.Equal(dec("500.00")))
}

func TestComputeConservation(t *testing.T) {
	repo := newStubRepository()
	seedPeriodOne(repo)
	repo.charges[1] = []OwnerAmount{{OwnerID: 2, Amount: dec("35.50")}}
	svc := NewService(repo, nil)

	sheet, err := svc.Compute(context.Background(), 1)
	require.NoError(t, err)

	// Sum of balances equals contributions minus charges, exactly.
	sum := decimal.Zero
	for _, r := range sheet.Rows {
		sum = sum.Add(r.Balance)
	}
	assert.True(t, sum.Equal(sheet.TotalBalance))
	assert.True(t, sheet.TotalBalance.Equal(sheet.TotalContributions.Sub(sheet.TotalCharges)))
}

func TestComputeUnknownPeriod(t *testing.T) {
	svc := NewService(newStubRepository(), nil)

	_, err := svc.Compute(context.Background(), 99)
	require.ErrorIs(t, err, periods.ErrPeriodNotFound)
}

func TestOwnerBalanceProjection(t *testing.T) {
	repo := newStubRepository()
	seedPeriodOne(repo)
	svc := NewService(repo, nil)

	row, err := svc.OwnerBalance(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, row.Balance.Equal(dec("280.00")))

	_, err = svc.OwnerBalance(context.Background(), 1, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestSheetUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newStubRepository()
	seedPeriodOne(repo)
	svc := NewService(repo, NewCache(client, time.Minute))

	first, err := svc.Sheet(context.Background(), 1)
	require.NoError(t, err)
	callsAfterFirst := repo.computeCalls

	second, err := svc.Sheet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, repo.computeCalls, "second sheet should come from cache")
	assert.True(t, second.TotalBalance.Equal(first.TotalBalance))
}

func TestInvalidatePeriodDropsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newStubRepository()
	seedPeriodOne(repo)
	svc := NewService(repo, NewCache(client, time.Minute))

	_, err := svc.Sheet(context.Background(), 1)
	require.NoError(t, err)
	callsAfterFirst := repo.computeCalls

	svc.InvalidatePeriod(context.Background(), 1)

	_, err = svc.Sheet(context.Background(), 1)
	require.NoError(t, err)
	assert.Greater(t, repo.computeCalls, callsAfterFirst, "invalidation should force recomputation")
}
