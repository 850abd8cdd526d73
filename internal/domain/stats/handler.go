package stats

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/neurodash/neurodash/internal/platform/fetch"
	"github.com/neurodash/neurodash/internal/platform/session"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staffGroup := api.Group("", session.RequireRole(session.RoleAdmin, session.RoleDoctor))
	staffGroup.GET("/stats", h.DashboardSummary)
	staffGroup.GET("/stats/analyzer", h.AnalyzerHealth)
}

// DashboardSummary serves the cached aggregate block; ?refresh=true forces
// a fresh fan-out.
func (h *Handler) DashboardSummary(c echo.Context) error {
	ctx := c.Request().Context()
	if c.QueryParam("refresh") == "true" {
		return fetch.JSON(c, h.svc.RefreshSummary(ctx))
	}
	return fetch.JSON(c, h.svc.DashboardSummary(ctx))
}

func (h *Handler) AnalyzerHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.AnalyzerHealth())
}
