package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/neurodash/neurodash/internal/platform/session"
)

func newTestContext(t *testing.T, method, target string, who *session.Session) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	if who != nil {
		ctx := context.WithValue(req.Context(), session.SessionKey, who)
		ctx = context.WithValue(ctx, session.UserIDKey, who.UserID)
		ctx = context.WithValue(ctx, session.RoleKey, who.Role)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJobStatusUnknownSession(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	svc, _ := testService(t, repo, doc)
	h := NewHandler(svc)

	c, _ := newTestContext(t, http.MethodGet, "/", doc)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.JobStatus(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("got %v, want 404", err)
	}
}

func TestJobStatusRejectsMalformedID(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	svc, _ := testService(t, repo, doc)
	h := NewHandler(svc)

	c, _ := newTestContext(t, http.MethodGet, "/", doc)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.JobStatus(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("got %v, want 400", err)
	}
}

func TestSubmitRequiresFile(t *testing.T) {
	repo := newMockRepo()
	doc := testSession(session.RoleDoctor)
	svc, _ := testService(t, repo, doc)
	h := NewHandler(svc)

	e := echo.New()
	form := strings.NewReader("patient_id=" + uuid.NewString())
	req := httptest.NewRequest(http.MethodPost, "/", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ctx := context.WithValue(req.Context(), session.SessionKey, doc)
	ctx = context.WithValue(ctx, session.UserIDKey, doc.UserID)
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Submit(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("got %v, want 400 for missing file", err)
	}
}

func TestPatientCannotDeleteSessions(t *testing.T) {
	repo := newMockRepo()
	pat := testSession(session.RolePatient)
	svc, _ := testService(t, repo, pat)
	h := NewHandler(svc)

	c, _ := newTestContext(t, http.MethodDelete, "/", pat)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	guarded := session.RequireRole(session.RoleAdmin, session.RoleDoctor)(h.DeleteSession)
	err := guarded(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("got %v, want 403 for patient delete", err)
	}
}

func TestAdminPassesStaffGuard(t *testing.T) {
	repo := newMockRepo()
	admin := testSession(session.RoleAdmin)
	svc, _ := testService(t, repo, admin)
	h := NewHandler(svc)

	c, rec := newTestContext(t, http.MethodDelete, "/", admin)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	guarded := session.RequireRole(session.RoleDoctor)(h.DeleteSession)
	if err := guarded(c); err != nil {
		t.Fatalf("admin delete rejected: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
