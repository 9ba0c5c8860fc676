package periods

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kassa-fin/kassa/internal/shared"
)

type mockRepository struct {
	periods map[int64]*Period
	nextID  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{periods: make(map[int64]*Period), nextID: 1}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, &mockTxRepository{mock: m})
}

func (m *mockRepository) Insert(ctx context.Context, in CreateInput) (Period, error) {
	for _, p := range m.periods {
		if p.Name == in.Name && p.StartDate.Year() == in.StartDate.Year() {
			return Period{}, ErrDuplicateName
		}
	}
	p := Period{
		ID:          m.nextID,
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      StatusOpen,
	}
	m.periods[p.ID] = &p
	m.nextID++
	return p, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (Period, error) {
	p, ok := m.periods[id]
	if !ok {
		return Period{}, ErrPeriodNotFound
	}
	return *p, nil
}

func (m *mockRepository) List(ctx context.Context) ([]Period, error) {
	out := make([]Period, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockRepository) ListOpen(ctx context.Context) ([]Period, error) {
	var out []Period
	for _, p := range m.periods {
		if p.Status == StatusOpen {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockTxRepository struct {
	mock *mockRepository
}

func (t *mockTxRepository) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	return t.mock.Get(ctx, id)
}

func (t *mockTxRepository) SetStatus(ctx context.Context, id int64, status Status, closedAt *time.Time) error {
	p, ok := t.mock.periods[id]
	if !ok {
		return ErrPeriodNotFound
	}
	p.Status = status
	p.ClosedAt = closedAt
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService() (*Service, *mockRepository, *recordingAudit) {
	repo := newMockRepository()
	audit := &recordingAudit{}
	svc := NewService(repo, audit)
	svc.WithNow(func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) })
	return svc, repo, audit
}

func validInput() CreateInput {
	return CreateInput{
		Name:      "January 2026",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateOpensPeriod(t *testing.T) {
	svc, _, _ := newTestService()

	period, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, period.Status)
	assert.Nil(t, period.ClosedAt)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()

	cases := map[string]func(*CreateInput){
		"empty name":       func(in *CreateInput) { in.Name = "  " },
		"missing dates":    func(in *CreateInput) { in.StartDate = time.Time{} },
		"start after end":  func(in *CreateInput) { in.StartDate = in.EndDate.AddDate(0, 1, 0) },
		"start equals end": func(in *CreateInput) { in.StartDate = in.EndDate },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Create(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrValidation))
		})
	}
}

func TestCreateDuplicateNameSameYear(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.StartDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	in.EndDate = time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConflict))
}

func TestCloseAndReopenRoundTrip(t *testing.T) {
	svc, repo, audit := newTestService()

	period, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	closed, err := svc.Close(context.Background(), period.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	reopened, err := svc.Reopen(context.Background(), period.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	assert.Nil(t, repo.periods[period.ID].ClosedAt)

	require.Len(t, audit.logs, 2)
	assert.Equal(t, "period.close", audit.logs[0].Action)
	assert.Equal(t, "period.reopen", audit.logs[1].Action)
	assert.Equal(t, int64(42), audit.logs[0].ActorID)
}

func TestCloseAlreadyClosedConflicts(t *testing.T) {
	svc, _, _ := newTestService()

	period, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), period.ID, 1)
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), period.ID, 1)
	require.ErrorIs(t, err, ErrAlreadyClosed)
	assert.True(t, errors.Is(err, shared.ErrConflict))
}

func TestReopenAlreadyOpenConflicts(t *testing.T) {
	svc, _, _ := newTestService()

	period, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Reopen(context.Background(), period.ID, 1)
	require.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestAssertOpen(t *testing.T) {
	svc, _, _ := newTestService()

	period, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.NoError(t, svc.AssertOpen(context.Background(), period.ID))

	_, err = svc.Close(context.Background(), period.ID, 1)
	require.NoError(t, err)
	require.ErrorIs(t, svc.AssertOpen(context.Background(), period.ID), ErrNotOpen)

	require.ErrorIs(t, svc.AssertOpen(context.Background(), 999), ErrPeriodNotFound)
}
