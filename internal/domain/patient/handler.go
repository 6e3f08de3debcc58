package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/SirMusk17/e-dental/internal/platform/auth"
	"github.com/SirMusk17/e-dental/internal/platform/rgpd"
	"github.com/SirMusk17/e-dental/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients")
	g.GET("", h.List, auth.RequireCapability(auth.CapPatientRead))
	g.POST("", h.Create, auth.RequireCapability(auth.CapPatientWrite))
	g.POST("/search", h.Search, auth.RequireCapability(auth.CapPatientRead))
	g.GET("/statistics", h.Statistics, auth.RequireCapability(auth.CapPatientStats))
	g.GET("/:id", h.Get, auth.RequireCapability(auth.CapPatientRead))
	g.PATCH("/:id", h.Update, auth.RequireCapability(auth.CapPatientWrite))
	g.DELETE("/:id", h.Delete, auth.RequireCapability(auth.CapPatientDelete))
	g.GET("/:id/audit_log", h.AuditTrail, auth.RequireCapability(auth.CapPatientAuditRead))
}

func requestMeta(c echo.Context) RequestMeta {
	return RequestMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.Create(c.Request().Context(), in, requestMeta(c))
	if err != nil {
		if errors.Is(err, ErrConsentRequired) {
			return echo.NewHTTPError(http.StatusBadRequest, "rgpd consent is required")
		}
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.Update(c.Request().Context(), id, in, requestMeta(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := h.svc.Delete(c.Request().Context(), id, requestMeta(c)); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) Search(c echo.Context) error {
	var in SearchInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pg := pagination.FromContext(c)
	patients, total, err := h.svc.Search(c.Request().Context(), in, pg.Limit, pg.Offset)
	if err != nil {
		if errors.Is(err, ErrInvalidSearchRange) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) Statistics(c echo.Context) error {
	stats, err := h.svc.Statistics(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) AuditTrail(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	pg := pagination.FromContext(c)
	entries, total, err := h.svc.AuditTrail(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

// mapError translates service failures to HTTP statuses. Cipher integrity
// failures stay a generic 500: the response never tells a client whether a
// ciphertext exists or is corrupt.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, rgpd.ErrCipherIntegrity):
		return echo.NewHTTPError(http.StatusInternalServerError, "record integrity check failed")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "patient operation failed")
	}
}
