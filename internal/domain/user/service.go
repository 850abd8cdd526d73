package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/fetch"
	"github.com/neurodash/neurodash/internal/platform/session"
)

// Page is one page of users with its total row count.
type Page struct {
	Users []*User `json:"users"`
	Total int     `json:"total"`
}

var validRoles = map[string]bool{
	session.RoleAdmin:   true,
	session.RoleDoctor:  true,
	session.RolePatient: true,
}

type Service struct {
	repo     Repository
	exec     *fetch.Executor
	registry *cache.Registry
}

func NewService(repo Repository, exec *fetch.Executor, registry *cache.Registry) *Service {
	return &Service{repo: repo, exec: exec, registry: registry}
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) fetch.Result[*Page] {
	key := cache.Key("users", map[string]string{
		"limit":  fmt.Sprint(limit),
		"offset": fmt.Sprint(offset),
	})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Page, error) {
		users, total, err := s.repo.List(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return &Page{Users: users, Total: total}, nil
	}, key)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) fetch.Result[*User] {
	key := cache.Key("users", map[string]string{"id": id.String()})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*User, error) {
		return s.repo.GetByID(ctx, id)
	}, key)
}

// CurrentUser resolves the caller's own profile from the session identity.
func (s *Service) CurrentUser(ctx context.Context) fetch.Result[*User] {
	sess := session.FromContext(ctx)
	if sess == nil {
		return fetch.Failure[*User](fetch.ErrUnauthenticated, "no active session")
	}
	id, err := uuid.Parse(sess.UserID)
	if err != nil {
		return fetch.Failure[*User](fetch.ErrRequestFailed, "malformed user id in session")
	}
	return s.GetUser(ctx, id)
}

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if u.Role == "" {
		u.Role = session.RolePatient
	}
	if !validRoles[u.Role] {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	u.Active = true
	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "user")
	return nil
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "user")
	return nil
}

func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	if !validRoles[role] {
		return fmt.Errorf("invalid role: %s", role)
	}
	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "user")
	return nil
}

func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "user")
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "user")
	return nil
}
