package scan

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/neurodash/neurodash/internal/analysis"
	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/fetch"
	"github.com/neurodash/neurodash/internal/platform/session"
)

// Page is one page of sessions with its total row count.
type Page struct {
	Sessions []*Session `json:"sessions"`
	Total    int        `json:"total"`
}

// Service coordinates session reads through the timed executor and drives
// the submit-and-poll workflow for new analyses.
type Service struct {
	repo     Repository
	exec     *fetch.Executor
	registry *cache.Registry
	client   *analysis.Client
	runner   *analysis.Runner
	board    *JobBoard
	log      zerolog.Logger
}

func NewService(repo Repository, exec *fetch.Executor, registry *cache.Registry, client *analysis.Client, runner *analysis.Runner, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		exec:     exec,
		registry: registry,
		client:   client,
		runner:   runner,
		board:    NewJobBoard(),
		log:      logger,
	}
}

// Board exposes the in-flight job registry for status and cancel endpoints.
func (s *Service) Board() *JobBoard { return s.board }

func (s *Service) ListSessions(ctx context.Context, limit, offset int) fetch.Result[*Page] {
	key := cache.Key("sessions", map[string]string{
		"limit":  fmt.Sprint(limit),
		"offset": fmt.Sprint(offset),
	})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Page, error) {
		sessions, total, err := s.repo.List(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return &Page{Sessions: sessions, Total: total}, nil
	}, key)
}

// MySessions returns the caller's own sessions: a doctor sees sessions they
// ordered, a patient sees sessions of their scans, an admin sees everything.
func (s *Service) MySessions(ctx context.Context, limit, offset int) fetch.Result[*Page] {
	sess := session.FromContext(ctx)
	if sess == nil {
		return fetch.Failure[*Page](fetch.ErrUnauthenticated, "no active session")
	}

	key := cache.Key("my-sessions", map[string]string{
		"user":   sess.UserID,
		"limit":  fmt.Sprint(limit),
		"offset": fmt.Sprint(offset),
	})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Page, error) {
		userID, err := uuid.Parse(sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("malformed user id in session: %w", err)
		}

		var (
			sessions []*Session
			total    int
		)
		switch sess.Role {
		case session.RoleDoctor:
			sessions, total, err = s.repo.ListByDoctor(ctx, userID, limit, offset)
		case session.RolePatient:
			sessions, total, err = s.repo.ListByPatient(ctx, userID, limit, offset)
		default:
			sessions, total, err = s.repo.List(ctx, limit, offset)
		}
		if err != nil {
			return nil, err
		}
		return &Page{Sessions: sessions, Total: total}, nil
	}, key)
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) fetch.Result[*Session] {
	key := cache.Key("sessions", map[string]string{"id": id.String()})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) (*Session, error) {
		return s.repo.GetByID(ctx, id)
	}, key)
}

func (s *Service) GetPredictions(ctx context.Context, sessionID uuid.UUID) fetch.Result[[]*Prediction] {
	key := cache.Key("predictions", map[string]string{"session": sessionID.String()})
	return fetch.Execute(ctx, s.exec, func(ctx context.Context) ([]*Prediction, error) {
		return s.repo.GetPredictions(ctx, sessionID)
	}, key)
}

// SubmitRequest describes a new analysis submission.
type SubmitRequest struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	AnalysisType string
	FileName     string
	Notes        string
	Payload      io.Reader
}

// Submitted is the immediate response to a submission; the job continues in
// the background and is observable through the board.
type Submitted struct {
	Session *Session       `json:"session"`
	JobID   uuid.UUID      `json:"job_id"`
	State   analysis.State `json:"state"`
}

// Submit creates the tracking session and starts the background job: post
// the scan to the analyzer, then poll the record until it settles. The
// returned handle is registered on the board under the session id.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Submitted, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.Payload == nil {
		return nil, fmt.Errorf("scan file is required")
	}
	if req.AnalysisType == "" {
		req.AnalysisType = AnalysisMultiDisease
	}
	if !validAnalysisTypes[req.AnalysisType] {
		return nil, fmt.Errorf("invalid analysis_type: %s", req.AnalysisType)
	}

	sess := &Session{
		ID:           uuid.New(),
		SessionCode:  NewSessionCode(time.Now().UTC()),
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		AnalysisType: req.AnalysisType,
		Status:       analysis.StatusProcessing,
		FileName:     req.FileName,
		Notes:        req.Notes,
	}

	// The job outlives the HTTP request, and the request's row-scoped
	// connection is released when the handler returns, so the runner works
	// against a fresh background context and the pool.
	jobCtx := context.Background()

	tracker := &sessionTracker{repo: s.repo, sess: sess}
	submit := analysis.SubmitFunc(func(ctx context.Context) error {
		return s.client.Analyze(ctx, sess.ID, sess.AnalysisType, sess.FileName, req.Payload)
	})

	handle := s.runner.Run(jobCtx, tracker, submit)
	s.board.Register(sess.ID, handle)
	s.registry.InvalidateFor(s.exec.Cache(), "session")

	go func() {
		out := <-handle.Done()
		s.registry.InvalidateFor(s.exec.Cache(), "session")
		s.log.Info().
			Str("session_id", sess.ID.String()).
			Str("state", string(out.State)).
			Str("detail", out.Message).
			Msg("analysis job settled")
	}()

	return &Submitted{Session: sess, JobID: sess.ID, State: handle.State()}, nil
}

// CancelJob stops observing a running job. The tracking record keeps
// whatever status it had; the analyzer may still finish server-side.
func (s *Service) CancelJob(id uuid.UUID) bool {
	return s.board.Cancel(id)
}

// RecordResult ingests the analyzer's prediction for a session and marks the
// record completed.
func (s *Service) RecordResult(ctx context.Context, sessionID uuid.UUID, pred *Prediction) error {
	if pred.Prediction == "" {
		return fmt.Errorf("prediction label is required")
	}
	pred.SessionID = sessionID
	if err := s.repo.RecordResult(ctx, pred); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "session")
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status analysis.Status, detail string) error {
	switch status {
	case analysis.StatusPending, analysis.StatusProcessing, analysis.StatusCompleted, analysis.StatusFailed:
	default:
		return fmt.Errorf("invalid status: %s", status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status, detail); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "session")
	return nil
}

func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	if err := s.repo.UpdateNotes(ctx, id, notes); err != nil {
		return err
	}
	s.registry.InvalidateFor(s.exec.Cache(), "session")
	return nil
}

// DeleteSession removes the record and drops every cached read it could
// have fed: the caller's own list and all session-shaped keys.
func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.board.Remove(id)
	s.registry.InvalidateFor(s.exec.Cache(), "session")
	return nil
}

// sessionTracker binds the runner's record operations to one session row.
type sessionTracker struct {
	repo Repository
	sess *Session
}

func (t *sessionTracker) Create(ctx context.Context) error {
	return t.repo.Create(ctx, t.sess)
}

func (t *sessionTracker) Status(ctx context.Context) (analysis.Status, error) {
	return t.repo.GetStatus(ctx, t.sess.ID)
}

func (t *sessionTracker) MarkFailed(ctx context.Context, reason string) error {
	return t.repo.UpdateStatus(ctx, t.sess.ID, analysis.StatusFailed, reason)
}
