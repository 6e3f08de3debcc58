package tenant

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SirMusk17/e-dental/internal/platform/db"
)

// Handler exposes the read-only view of a tenant's own registry entry.
// Provisioning and deactivation are operator actions and live on the CLI.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/clinic", h.Current)
	api.GET("/clinic/domains", h.Domains)
}

func (h *Handler) Current(c echo.Context) error {
	clinic, err := h.svc.Current(c.Request().Context())
	if err != nil {
		if errors.Is(err, db.ErrTenantNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "clinic lookup failed")
	}
	return c.JSON(http.StatusOK, clinic)
}

func (h *Handler) Domains(c echo.Context) error {
	domains, err := h.svc.CurrentDomains(c.Request().Context())
	if err != nil {
		if errors.Is(err, db.ErrTenantNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "domain lookup failed")
	}
	return c.JSON(http.StatusOK, domains)
}
