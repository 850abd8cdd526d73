package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/fetch"
)

// Page is one page of doctors with its total row count.
type Page struct {
	Doctors []*Doctor `json:"doctors"`
	Total   int       `json:"total"`
}

type Service struct {
	repo     Repository
	exec     *fetch.Executor
	registry *cache.Registry
}

func NewService(repo Repository, exec *fetch.Executor, registry *cache.Registry) *Service {
	return &Service{repo: repo, exec: exec, registry: registry}
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) fetch.Result[*Page] {
	key := cache.Key("doctors", map[string]string{
		"limit":  fmt.Sprint(limit),
		"offset": fmt.Sprint(offset),
	})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Page, error) {
		doctors, total, err := s.repo.List(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return &Page{Doctors: doctors, Total: total}, nil
	}, key)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) fetch.Result[*Doctor] {
	key := cache.Key("doctors", map[string]string{"id": id.String()})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Doctor, error) {
		return s.repo.GetByID(ctx, id)
	}, key)
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if d.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "doctor")
	return nil
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "doctor")
	return nil
}

// DeleteDoctor removes the profile. Patient assignments reference it, so the
// registry drops patient lists along with doctor entries.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "doctor")
	return nil
}
