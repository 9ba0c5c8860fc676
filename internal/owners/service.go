package owners

import (
	"context"
	"fmt"
)

// Service exposes the owner directory to the rest of the core.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Owner, error) {
	if err := in.Validate(); err != nil {
		return Owner{}, err
	}
	return s.repo.Insert(ctx, in)
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Owner, error) {
	if err := in.Validate(); err != nil {
		return Owner{}, err
	}
	owner, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Owner{}, fmt.Errorf("owner %d: %w", id, err)
	}
	return owner, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Owner, error) {
	owner, err := s.repo.Get(ctx, id)
	if err != nil {
		return Owner{}, fmt.Errorf("owner %d: %w", id, err)
	}
	return owner, nil
}

func (s *Service) List(ctx context.Context) ([]Owner, error) {
	return s.repo.List(ctx)
}
