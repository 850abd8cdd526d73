package doctor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/fetch"
	"github.com/neurodash/neurodash/internal/platform/session"
)

type mockRepo struct {
	mu        sync.Mutex
	doctors   map[uuid.UUID]*Doctor
	listCalls int
}

func newMockRepo() *mockRepo {
	return &mockRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockRepo) Create(ctx context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, errors.New("doctor not found")
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.doctors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, errors.New("doctor not found")
}

func (m *mockRepo) Update(ctx context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[d.ID]; !ok {
		return errors.New("doctor not found")
	}
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.doctors, id)
	return nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []*Doctor
	for _, d := range m.doctors {
		cp := *d
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.doctors), nil
}

func testService(t *testing.T) (*Service, *mockRepo, *cache.Cache) {
	t.Helper()
	repo := newMockRepo()
	holder := session.NewHolder()
	holder.Set(&session.Session{UserID: uuid.NewString(), Role: session.RoleAdmin})
	gate := session.NewGate(holder, session.WithRetryInterval(5*time.Millisecond))
	c := cache.New()
	exec := fetch.NewExecutor(gate, c, fetch.WithAuthWait(50*time.Millisecond))
	return NewService(repo, exec, cache.DefaultRegistry()), repo, c
}

func TestCreateDoctorValidation(t *testing.T) {
	svc, _, _ := testService(t)

	err := svc.CreateDoctor(context.Background(), &Doctor{UserID: uuid.New()})
	if err == nil || !strings.Contains(err.Error(), "full_name") {
		t.Errorf("err = %v, want missing full_name", err)
	}
	err = svc.CreateDoctor(context.Background(), &Doctor{FullName: "Dr. Mensah"})
	if err == nil || !strings.Contains(err.Error(), "user_id") {
		t.Errorf("err = %v, want missing user_id", err)
	}
}

func TestDeleteDoctorDropsPatientListCaches(t *testing.T) {
	svc, repo, c := testService(t)
	ctx := context.Background()

	d := &Doctor{ID: uuid.New(), UserID: uuid.New(), FullName: "Dr. Mensah"}
	repo.doctors[d.ID] = d

	svc.ListDoctors(ctx, 20, 0)
	c.Set("patients?doctor="+d.ID.String(), "warm")

	if err := svc.DeleteDoctor(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDoctor: %v", err)
	}
	if _, ok := c.Get("patients?doctor=" + d.ID.String()); ok {
		t.Error("patient list entry survived a doctor deletion")
	}
	res := svc.ListDoctors(ctx, 20, 0)
	if !res.OK || res.Data.Total != 0 {
		t.Errorf("post-delete list = %+v", res)
	}
}

func TestGetDoctorCached(t *testing.T) {
	svc, repo, _ := testService(t)
	ctx := context.Background()

	d := &Doctor{ID: uuid.New(), UserID: uuid.New(), FullName: "Dr. Mensah"}
	repo.doctors[d.ID] = d

	first := svc.GetDoctor(ctx, d.ID)
	if !first.OK || first.Data.FullName != "Dr. Mensah" {
		t.Fatalf("first read = %+v", first)
	}

	repo.mu.Lock()
	delete(repo.doctors, d.ID)
	repo.mu.Unlock()

	second := svc.GetDoctor(ctx, d.ID)
	if !second.OK {
		t.Error("read within TTL should be served from the cache")
	}
}
