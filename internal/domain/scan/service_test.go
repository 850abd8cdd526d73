package scan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/neurodash/neurodash/internal/analysis"
	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/fetch"
	"github.com/neurodash/neurodash/internal/platform/session"
)

type mockRepo struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]*Session
	predictions map[uuid.UUID][]*Prediction
	createErr   error
	listCalls   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		sessions:    make(map[uuid.UUID]*Session),
		predictions: make(map[uuid.UUID][]*Prediction),
	}
}

func (m *mockRepo) Create(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) GetByCode(ctx context.Context, code string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.SessionCode == code {
			cp := *s
			return &cp, nil
		}
	}
	return nil, errors.New("session not found")
}

func (m *mockRepo) GetStatus(ctx context.Context, id uuid.UUID) (analysis.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return "", errors.New("session not found")
	}
	return s.Status, nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status analysis.Status, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return errors.New("session not found")
	}
	s.Status = status
	s.ErrorDetail = detail
	return nil
}

func (m *mockRepo) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return errors.New("session not found")
	}
	s.Notes = notes
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []*Session
	for _, s := range m.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []*Session
	for _, s := range m.sessions {
		if s.PatientID == patientID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []*Session
	for _, s := range m.sessions {
		if s.DoctorID == doctorID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) CreatePrediction(ctx context.Context, p *Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.predictions[p.SessionID] = append(m.predictions[p.SessionID], &cp)
	return nil
}

func (m *mockRepo) RecordResult(ctx context.Context, p *Prediction) error {
	if err := m.CreatePrediction(ctx, p); err != nil {
		return err
	}
	return m.UpdateStatus(ctx, p.SessionID, analysis.StatusCompleted, "")
}

func (m *mockRepo) GetPredictions(ctx context.Context, sessionID uuid.UUID) ([]*Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[sessionID], nil
}

func (m *mockRepo) lists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// countingSubmitter tracks whether the external service was contacted.
type countingSubmitter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingSubmitter) Submit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func testSession(role string) *session.Session {
	return &session.Session{
		UserID: uuid.NewString(),
		Role:   role,
		Email:  "doc@clinic.test",
	}
}

func testService(t *testing.T, repo Repository, who *session.Session) (*Service, *cache.Cache) {
	t.Helper()
	holder := session.NewHolder()
	if who != nil {
		holder.Set(who)
	}
	gate := session.NewGate(holder, session.WithRetryInterval(5*time.Millisecond))
	c := cache.New()
	exec := fetch.NewExecutor(gate, c, fetch.WithAuthWait(50*time.Millisecond))
	runner := analysis.NewRunner(5*time.Millisecond, 10, zerolog.Nop())
	svc := NewService(repo, exec, cache.DefaultRegistry(), nil, runner, zerolog.Nop())
	return svc, c
}

func authedCtx(who *session.Session) context.Context {
	ctx := context.WithValue(context.Background(), session.SessionKey, who)
	ctx = context.WithValue(ctx, session.UserIDKey, who.UserID)
	return context.WithValue(ctx, session.RoleKey, who.Role)
}

func seedSession(repo *mockRepo, doctorID, patientID uuid.UUID, status analysis.Status) *Session {
	s := &Session{
		ID:           uuid.New(),
		SessionCode:  NewSessionCode(time.Now()),
		PatientID:    patientID,
		DoctorID:     doctorID,
		AnalysisType: AnalysisMultiDisease,
		Status:       status,
	}
	repo.sessions[s.ID] = s
	return s
}

func TestMySessionsScopesByRole(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	docID := uuid.MustParse(doc.UserID)
	seedSession(repo, docID, uuid.New(), analysis.StatusCompleted)
	seedSession(repo, uuid.New(), uuid.New(), analysis.StatusCompleted) // other doctor

	svc, _ := testService(t, repo, doc)
	res := svc.MySessions(authedCtx(doc), 20, 0)
	if !res.OK {
		t.Fatalf("MySessions failed: %s %s", res.Kind, res.Message)
	}
	if res.Data.Total != 1 {
		t.Errorf("doctor sees %d sessions, want 1", res.Data.Total)
	}
}

func TestMySessionsCachedPerUser(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	svc, _ := testService(t, repo, doc)
	ctx := authedCtx(doc)

	svc.MySessions(ctx, 20, 0)
	before := repo.lists()

	// Second read within the TTL is served from the cache.
	res := svc.MySessions(ctx, 20, 0)
	if !res.OK {
		t.Fatalf("cached read failed: %s", res.Kind)
	}
	if repo.lists() != before {
		t.Errorf("repo hit %d times after cached read, want %d", repo.lists(), before)
	}
}

func TestDeleteSessionForcesFreshFetch(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	docID := uuid.MustParse(doc.UserID)
	victim := seedSession(repo, docID, uuid.New(), analysis.StatusCompleted)

	svc, c := testService(t, repo, doc)
	ctx := authedCtx(doc)

	if res := svc.MySessions(ctx, 20, 0); !res.OK || res.Data.Total != 1 {
		t.Fatalf("warm-up read = %+v", res)
	}
	if res := svc.ListSessions(ctx, 20, 0); !res.OK {
		t.Fatalf("list read failed: %s", res.Kind)
	}
	cachedBefore := c.Len()
	if cachedBefore == 0 {
		t.Fatal("expected warmed cache before delete")
	}

	if err := svc.DeleteSession(ctx, victim.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	before := repo.lists()
	res := svc.MySessions(ctx, 20, 0)
	if !res.OK {
		t.Fatalf("post-delete read failed: %s", res.Kind)
	}
	if repo.lists() != before+1 {
		t.Error("post-delete read was served from a stale cache")
	}
	if res.Data.Total != 0 {
		t.Errorf("deleted session still visible: %+v", res.Data)
	}
}

func TestSubmitCreatesRecordBeforeExternalCall(t *testing.T) {
	repo := newMockRepo()

	created := make(chan uuid.UUID, 1)
	ext := &countingSubmitter{}

	// Exercise the runner directly the way Submit wires it, with a tracker
	// that reports creation order.
	sess := &Session{ID: uuid.New(), Status: analysis.StatusProcessing, AnalysisType: AnalysisMultiDisease}
	tracker := &sessionTracker{repo: repo, sess: sess}
	submit := analysis.SubmitFunc(func(ctx context.Context) error {
		repo.mu.Lock()
		_, ok := repo.sessions[sess.ID]
		repo.mu.Unlock()
		if !ok {
			t.Error("external call made before tracking record existed")
		}
		created <- sess.ID
		return ext.Submit(ctx)
	})

	runner := analysis.NewRunner(time.Millisecond, 5, zerolog.Nop())
	h := runner.Run(context.Background(), tracker, submit)
	<-created

	repo.UpdateStatus(context.Background(), sess.ID, analysis.StatusCompleted, "")
	out, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if out.State != analysis.StateCompleted {
		t.Errorf("state = %s, want completed", out.State)
	}
}

func TestSubmitValidation(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	svc, _ := testService(t, repo, doc)

	_, err := svc.Submit(authedCtx(doc), SubmitRequest{Payload: strings.NewReader("x")})
	if err == nil || !strings.Contains(err.Error(), "patient_id") {
		t.Errorf("err = %v, want missing patient_id", err)
	}

	_, err = svc.Submit(authedCtx(doc), SubmitRequest{
		PatientID:    uuid.New(),
		Payload:      strings.NewReader("x"),
		AnalysisType: "phrenology",
	})
	if err == nil || !strings.Contains(err.Error(), "invalid analysis_type") {
		t.Errorf("err = %v, want invalid analysis_type", err)
	}
}

func TestSubmitFailedTrackingSkipsExternalCall(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.New("insert denied")

	sess := &Session{ID: uuid.New(), Status: analysis.StatusProcessing}
	tracker := &sessionTracker{repo: repo, sess: sess}
	ext := &countingSubmitter{}

	runner := analysis.NewRunner(time.Millisecond, 5, zerolog.Nop())
	h := runner.Run(context.Background(), tracker, ext)
	out, _ := h.Wait(context.Background())

	if out.Kind != fetch.ErrJobSubmissionFailed {
		t.Errorf("kind = %s, want %s", out.Kind, fetch.ErrJobSubmissionFailed)
	}
	ext.mu.Lock()
	calls := ext.calls
	ext.mu.Unlock()
	if calls != 0 {
		t.Errorf("external service called %d times after tracking failure", calls)
	}
}

func TestPollTimeoutLeavesRecordUntouched(t *testing.T) {
	repo := newMockRepo()
	sess := &Session{ID: uuid.New(), Status: analysis.StatusProcessing}
	tracker := &sessionTracker{repo: repo, sess: sess}

	runner := analysis.NewRunner(time.Millisecond, 3, zerolog.Nop())
	h := runner.Run(context.Background(), tracker, &countingSubmitter{})
	out, _ := h.Wait(context.Background())

	if out.Kind != fetch.ErrJobTimedOut {
		t.Fatalf("kind = %s, want %s", out.Kind, fetch.ErrJobTimedOut)
	}
	got, err := repo.GetStatus(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got != analysis.StatusProcessing {
		t.Errorf("record status = %s after observer timeout, want processing", got)
	}
}

func TestRecordResultCompletesSession(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	docID := uuid.MustParse(doc.UserID)
	sess := seedSession(repo, docID, uuid.New(), analysis.StatusProcessing)

	svc, _ := testService(t, repo, doc)
	pred := &Prediction{Prediction: "AD", ConfidenceScore: 0.93, ModelVersion: "v2"}
	if err := svc.RecordResult(authedCtx(doc), sess.ID, pred); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}

	got, _ := repo.GetStatus(context.Background(), sess.ID)
	if got != analysis.StatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
	preds, _ := repo.GetPredictions(context.Background(), sess.ID)
	if len(preds) != 1 || preds[0].Prediction != "AD" {
		t.Errorf("predictions = %+v", preds)
	}
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	svc, _ := testService(t, repo, doc)

	err := svc.UpdateStatus(authedCtx(doc), uuid.New(), "done-ish", "")
	if err == nil || !strings.Contains(err.Error(), "invalid status") {
		t.Errorf("err = %v, want invalid status", err)
	}
}

func TestSessionCodeFormat(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	code := NewSessionCode(now)
	if !strings.HasPrefix(code, "MRI-20250615-") {
		t.Errorf("code = %s", code)
	}
	if len(code) != len("MRI-20250615-XXXX") {
		t.Errorf("code length = %d", len(code))
	}
}
