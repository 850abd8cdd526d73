package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/fetch"
)

// Page is one page of patients with its total row count.
type Page struct {
	Patients []*Patient `json:"patients"`
	Total    int        `json:"total"`
}

type Service struct {
	repo     Repository
	exec     *fetch.Executor
	registry *cache.Registry
}

func NewService(repo Repository, exec *fetch.Executor, registry *cache.Registry) *Service {
	return &Service{repo: repo, exec: exec, registry: registry}
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) fetch.Result[*Page] {
	key := cache.Key("patients", map[string]string{
		"limit":  fmt.Sprint(limit),
		"offset": fmt.Sprint(offset),
	})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Page, error) {
		patients, total, err := s.repo.List(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return &Page{Patients: patients, Total: total}, nil
	}, key)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) fetch.Result[*Page] {
	key := cache.Key("patients", map[string]string{
		"doctor": doctorID.String(),
		"limit":  fmt.Sprint(limit),
		"offset": fmt.Sprint(offset),
	})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Page, error) {
		patients, total, err := s.repo.ListByDoctor(ctx, doctorID, limit, offset)
		if err != nil {
			return nil, err
		}
		return &Page{Patients: patients, Total: total}, nil
	}, key)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) fetch.Result[*Patient] {
	key := cache.Key("patients", map[string]string{"id": id.String()})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Patient, error) {
		return s.repo.GetByID(ctx, id)
	}, key)
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if p.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "patient")
	return nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "patient")
	return nil
}

// AssignDoctor links or, with a nil doctorID, unlinks a patient's doctor.
// The assignment stales doctor-scoped patient lists, so the whole patient
// footprint is dropped.
func (s *Service) AssignDoctor(ctx context.Context, id uuid.UUID, doctorID *uuid.UUID) error {
	if err := s.repo.AssignDoctor(ctx, id, doctorID); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "patient")
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "patient")
	return nil
}
