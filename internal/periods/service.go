package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/kassa-fin/kassa/internal/shared"
)

// AuditPort records period lifecycle transitions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the period lifecycle: OPEN on creation, CLOSED by close,
// OPEN again by reopen. Every ledger mutation is gated on the open state.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	return s.repo.Insert(ctx, in)
}

func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListOpen(ctx context.Context) ([]Period, error) {
	return s.repo.ListOpen(ctx)
}

// Close transitions OPEN -> CLOSED and stamps closed_at.
func (s *Service) Close(ctx context.Context, id int64, actorID int64) (Period, error) {
	period, err := s.transition(ctx, id, StatusClosed)
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actorID, "period.close", period)
	return period, nil
}

// Reopen transitions CLOSED -> OPEN for corrections and clears closed_at.
// Opening rows already carried forward into a successor period are left in
// place; each carry-forward run is a distinct financial event.
func (s *Service) Reopen(ctx context.Context, id int64, actorID int64) (Period, error) {
	period, err := s.transition(ctx, id, StatusOpen)
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actorID, "period.reopen", period)
	return period, nil
}

// AssertOpen fails with a conflict unless the period exists and is OPEN.
func (s *Service) AssertOpen(ctx context.Context, id int64) error {
	period, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if period.Status != StatusOpen {
		return ErrNotOpen
	}
	return nil
}

func (s *Service) transition(ctx context.Context, id int64, target Status) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == target {
			if target == StatusClosed {
				return ErrAlreadyClosed
			}
			return ErrAlreadyOpen
		}
		var closedAt *time.Time
		if target == StatusClosed {
			ts := s.now()
			closedAt = &ts
		}
		if err := tx.SetStatus(ctx, id, target, closedAt); err != nil {
			return err
		}
		period = current
		period.Status = target
		period.ClosedAt = closedAt
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, period Period) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "service_period",
		EntityID: fmt.Sprintf("%d", period.ID),
		Meta: map[string]any{
			"name":   period.Name,
			"status": string(period.Status),
		},
		At: s.now(),
	})
}
