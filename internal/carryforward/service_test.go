package carryforward

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kassa-fin/kassa/internal/balance"
	"github.com/kassa-fin/kassa/internal/ledger"
	"github.com/kassa-fin/kassa/internal/periods"
	"github.com/kassa-fin/kassa/internal/shared"
)

type mockRepository struct {
	periods       map[int64]*periods.Period
	runs          []Run
	contributions []ledger.Contribution
	charges       []ledger.ServiceCharge
	nextID        int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{periods: make(map[int64]*periods.Period), nextID: 1}
}

func (m *mockRepository) addPeriod(id int64, status periods.Status, start time.Time) {
	p := &periods.Period{ID: id, Status: status, StartDate: start}
	if status == periods.StatusClosed {
		ts := start.AddDate(0, 1, 0)
		p.ClosedAt = &ts
	}
	m.periods[id] = p
}

func (m *mockRepository) GetPeriod(ctx context.Context, periodID int64) (periods.Period, error) {
	p, ok := m.periods[periodID]
	if !ok {
		return periods.Period{}, periods.ErrPeriodNotFound
	}
	return *p, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx := &mockTxRepo{mock: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// Commit staged writes.
	m.runs = append(m.runs, tx.runs...)
	m.contributions = append(m.contributions, tx.contributions...)
	m.charges = append(m.charges, tx.charges...)
	return nil
}

func (m *mockRepository) ListRuns(ctx context.Context, toPeriodID int64) ([]Run, error) {
	var out []Run
	for _, run := range m.runs {
		if run.ToPeriodID == toPeriodID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *mockRepository) ListOpeningRows(ctx context.Context, periodID int64) (OpeningRows, error) {
	var opening OpeningRows
	for _, c := range m.contributions {
		if c.PeriodID == periodID && c.CarryForwardRunID != nil {
			opening.Contributions = append(opening.Contributions, c)
		}
	}
	for _, c := range m.charges {
		if c.PeriodID == periodID && c.CarryForwardRunID != nil {
			opening.Charges = append(opening.Charges, c)
		}
	}
	return opening, nil
}

type mockTxRepo struct {
	mock          *mockRepository
	runs          []Run
	contributions []ledger.Contribution
	charges       []ledger.ServiceCharge
}

func (t *mockTxRepo) LockPeriod(ctx context.Context, periodID int64) (periods.Period, error) {
	p, ok := t.mock.periods[periodID]
	if !ok {
		return periods.Period{}, periods.ErrPeriodNotFound
	}
	return *p, nil
}

func (t *mockTxRepo) InsertRun(ctx context.Context, run Run) error {
	t.runs = append(t.runs, run)
	return nil
}

func (t *mockTxRepo) InsertOpeningContribution(ctx context.Context, runID uuid.UUID, periodID, ownerID int64, amount decimal.Decimal, date time.Time) error {
	id := runID
	t.contributions = append(t.contributions, ledger.Contribution{
		ID:                t.mock.nextID,
		PeriodID:          periodID,
		OwnerID:           ownerID,
		Amount:            amount,
		Date:              date,
		Comment:           OpeningBalanceComment,
		CarryForwardRunID: &id,
	})
	t.mock.nextID++
	return nil
}

func (t *mockTxRepo) InsertOpeningCharge(ctx context.Context, runID uuid.UUID, periodID, ownerID int64, amount decimal.Decimal) error {
	id := runID
	t.charges = append(t.charges, ledger.ServiceCharge{
		ID:                t.mock.nextID,
		PeriodID:          periodID,
		OwnerID:           ownerID,
		Amount:            amount,
		Description:       OpeningDebtComment,
		CarryForwardRunID: &id,
	})
	t.mock.nextID++
	return nil
}

type stubBalances struct {
	sheets       map[int64]balance.Sheet
	computeCalls int
	onCompute    func()
}

func (s *stubBalances) Compute(ctx context.Context, periodID int64) (balance.Sheet, error) {
	s.computeCalls++
	if s.onCompute != nil {
		s.onCompute()
	}
	sheet, ok := s.sheets[periodID]
	if !ok {
		return balance.Sheet{}, periods.ErrPeriodNotFound
	}
	return sheet, nil
}

type recordingInvalidator struct {
	periodIDs []int64
}

func (r *recordingInvalidator) InvalidatePeriod(ctx context.Context, periodID int64) {
	r.periodIDs = append(r.periodIDs, periodID)
}

type recordingWarmups struct {
	periodIDs []int64
}

func (r *recordingWarmups) EnqueueBalanceWarmupPeriod(ctx context.Context, periodID int64) error {
	r.periodIDs = append(r.periodIDs, periodID)
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(rows []balance.OwnerBalance) (*Service, *mockRepository, *recordingInvalidator, *recordingAudit) {
	repo := newMockRepository()
	repo.addPeriod(1, periods.StatusClosed, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo.addPeriod(2, periods.StatusOpen, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	balances := &stubBalances{sheets: map[int64]balance.Sheet{
		1: {PeriodID: 1, Rows: rows},
	}}
	invalidator := &recordingInvalidator{}
	audit := &recordingAudit{}
	svc := NewService(repo, balances, invalidator, audit)
	svc.WithNow(func() time.Time { return time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC) })
	return svc, repo, invalidator, audit
}

func TestRunCarriesCreditsAndDebts(t *testing.T) {
	svc, repo, invalidator, audit := newTestService([]balance.OwnerBalance{
		{OwnerID: 1, Balance: dec("220.00")},
		{OwnerID: 2, Balance: dec("280.00")},
		{OwnerID: 3, Balance: dec("-75.50")},
		{OwnerID: 4, Balance: decimal.Zero},
	})

	summary, err := svc.Run(context.Background(), 1, 2, 9)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Run.OwnersProcessed)
	assert.True(t, summary.Run.TotalCredits.Equal(dec("500.00")))
	assert.True(t, summary.Run.TotalDebts.Equal(dec("75.50")))
	assert.NotEqual(t, uuid.Nil, summary.Run.ID)

	// Positive balances become opening contributions dated at the target
	// period start, negative ones opening charges; zero writes nothing.
	require.Len(t, repo.contributions, 2)
	for _, c := range repo.contributions {
		assert.Equal(t, int64(2), c.PeriodID)
		assert.Equal(t, OpeningBalanceComment, c.Comment)
		assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), c.Date)
		require.NotNil(t, c.CarryForwardRunID)
		assert.Equal(t, summary.Run.ID, *c.CarryForwardRunID)
	}
	require.Len(t, repo.charges, 1)
	assert.True(t, repo.charges[0].Amount.Equal(dec("75.50")))
	assert.Equal(t, OpeningDebtComment, repo.charges[0].Description)

	assert.Equal(t, []int64{2}, invalidator.periodIDs)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "carryforward.run", audit.logs[0].Action)
}

func TestRunSourceMustBeClosedBeforeSnapshot(t *testing.T) {
	repo := newMockRepository()
	repo.addPeriod(1, periods.StatusOpen, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo.addPeriod(2, periods.StatusOpen, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	// An open source must be rejected before any balances are read. A
	// concurrent writer could still be adding rows and closing the period,
	// which would leave the snapshot behind the final balances.
	balances := &stubBalances{
		sheets: map[int64]balance.Sheet{1: {PeriodID: 1, Rows: []balance.OwnerBalance{{OwnerID: 1, Balance: dec("100.00")}}}},
		onCompute: func() {
			ts := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
			repo.periods[1].Status = periods.StatusClosed
			repo.periods[1].ClosedAt = &ts
		},
	}
	svc := NewService(repo, balances, nil, nil)

	_, err := svc.Run(context.Background(), 1, 2, 9)
	require.ErrorIs(t, err, ErrSourceNotClosed)
	assert.True(t, errors.Is(err, shared.ErrConflict))
	assert.Zero(t, balances.computeCalls)
	assert.Empty(t, repo.contributions)
	assert.Empty(t, repo.runs)
}

func TestRunConflictsWhenSourceReclosedMidRun(t *testing.T) {
	repo := newMockRepository()
	repo.addPeriod(1, periods.StatusClosed, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo.addPeriod(2, periods.StatusOpen, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	// Reopen, edit, close again between the snapshot and the write
	// transaction: closed_at moves, so the run must conflict rather than
	// commit opening rows computed from the stale snapshot.
	balances := &stubBalances{
		sheets: map[int64]balance.Sheet{1: {PeriodID: 1, Rows: []balance.OwnerBalance{{OwnerID: 1, Balance: dec("100.00")}}}},
	}
	balances.onCompute = func() {
		ts := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
		repo.periods[1].ClosedAt = &ts
	}
	svc := NewService(repo, balances, nil, nil)

	_, err := svc.Run(context.Background(), 1, 2, 9)
	require.ErrorIs(t, err, ErrSourceChanged)
	assert.True(t, errors.Is(err, shared.ErrConflict))
	assert.Empty(t, repo.contributions)
	assert.Empty(t, repo.runs)
}

func TestRunTargetMustBeOpen(t *testing.T) {
	svc, repo, _, _ := newTestService([]balance.OwnerBalance{{OwnerID: 1, Balance: dec("10.00")}})
	repo.periods[2].Status = periods.StatusClosed

	_, err := svc.Run(context.Background(), 1, 2, 9)
	require.ErrorIs(t, err, periods.ErrNotOpen)
	assert.Empty(t, repo.contributions)
}

func TestRunSamePeriodRejected(t *testing.T) {
	svc, _, _, _ := newTestService(nil)

	_, err := svc.Run(context.Background(), 1, 1, 9)
	require.ErrorIs(t, err, ErrSamePeriod)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestRunTwiceWritesTwoRowSets(t *testing.T) {
	svc, repo, _, _ := newTestService([]balance.OwnerBalance{{OwnerID: 1, Balance: dec("100.00")}})

	first, err := svc.Run(context.Background(), 1, 2, 9)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), 1, 2, 9)
	require.NoError(t, err)

	assert.NotEqual(t, first.Run.ID, second.Run.ID)
	assert.Len(t, repo.contributions, 2)

	runs, err := svc.Runs(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunQueuesWarmupForTarget(t *testing.T) {
	svc, _, _, _ := newTestService([]balance.OwnerBalance{{OwnerID: 1, Balance: dec("40.00")}})
	warmups := &recordingWarmups{}
	svc.WithWarmups(warmups)

	_, err := svc.Run(context.Background(), 1, 2, 9)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, warmups.periodIDs)
}

func TestOpeningRowsListsCarriedRows(t *testing.T) {
	svc, _, _, _ := newTestService([]balance.OwnerBalance{
		{OwnerID: 1, Balance: dec("50.00")},
		{OwnerID: 2, Balance: dec("-20.00")},
	})

	_, err := svc.Run(context.Background(), 1, 2, 9)
	require.NoError(t, err)

	opening, err := svc.OpeningRows(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, opening.Contributions, 1)
	assert.Len(t, opening.Charges, 1)
}
