package scan

import (
	"bytes"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/neurodash/neurodash/internal/analysis"
	"github.com/neurodash/neurodash/internal/platform/fetch"
	"github.com/neurodash/neurodash/internal/platform/session"
	"github.com/neurodash/neurodash/pkg/pagination"
)

// maxScanUpload caps buffered scan uploads at 256 MiB.
const maxScanUpload = 256 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", session.RequireRole(session.RoleAdmin, session.RoleDoctor, session.RolePatient))
	readGroup.GET("/my-sessions", h.MySessions)
	readGroup.GET("/sessions/:id", h.GetSession)
	readGroup.GET("/sessions/:id/predictions", h.GetPredictions)
	readGroup.GET("/sessions/:id/job", h.JobStatus)

	staffGroup := api.Group("", session.RequireRole(session.RoleAdmin, session.RoleDoctor))
	staffGroup.GET("/sessions", h.ListSessions)
	staffGroup.POST("/sessions", h.Submit)
	staffGroup.DELETE("/sessions/:id", h.DeleteSession)
	staffGroup.DELETE("/sessions/:id/job", h.CancelJob)
	staffGroup.PATCH("/sessions/:id/status", h.UpdateStatus)
	staffGroup.PATCH("/sessions/:id/notes", h.UpdateNotes)

	adminGroup := api.Group("", session.RequireRole(session.RoleAdmin))
	adminGroup.POST("/sessions/:id/results", h.RecordResult)
}

func (h *Handler) ListSessions(c echo.Context) error {
	pg := pagination.FromContext(c)
	return fetch.JSON(c, h.svc.ListSessions(c.Request().Context(), pg.Limit, pg.Offset))
}

func (h *Handler) MySessions(c echo.Context) error {
	pg := pagination.FromContext(c)
	return fetch.JSON(c, h.svc.MySessions(c.Request().Context(), pg.Limit, pg.Offset))
}

func (h *Handler) GetSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return fetch.JSON(c, h.svc.GetSession(c.Request().Context(), id))
}

func (h *Handler) GetPredictions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return fetch.JSON(c, h.svc.GetPredictions(c.Request().Context(), id))
}

func (h *Handler) Submit(c echo.Context) error {
	patientID, err := uuid.Parse(c.FormValue("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "scan file is required")
	}
	if fileHeader.Size > maxScanUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "scan file too large")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable scan file")
	}
	defer file.Close()

	// The upload is posted to the analyzer after this handler returns, so it
	// is buffered before the server reclaims the multipart temp file.
	payload, err := io.ReadAll(io.LimitReader(file, maxScanUpload))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read scan file")
	}

	var doctorID uuid.UUID
	if raw := session.UserIDFromContext(c.Request().Context()); raw != "" {
		doctorID, _ = uuid.Parse(raw)
	}

	submitted, err := h.svc.Submit(c.Request().Context(), SubmitRequest{
		PatientID:    patientID,
		DoctorID:     doctorID,
		AnalysisType: c.FormValue("analysis_type"),
		FileName:     fileHeader.Filename,
		Notes:        c.FormValue("notes"),
		Payload:      bytes.NewReader(payload),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, submitted)
}

func (h *Handler) JobStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	handle := h.svc.Board().Get(id)
	if handle == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no tracked job for session")
	}
	return c.JSON(http.StatusOK, map[string]analysis.State{"state": handle.State()})
}

func (h *Handler) CancelJob(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !h.svc.CancelJob(id) {
		return echo.NewHTTPError(http.StatusNotFound, "no tracked job for session")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var pred Prediction
	if err := c.Bind(&pred); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RecordResult(c.Request().Context(), id, &pred); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, pred)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status analysis.Status `json:"status"`
		Detail string          `json:"detail"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status, body.Detail); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateNotes(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateNotes(c.Request().Context(), id, body.Notes); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSession(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
