package auditlog

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ReadAudit returns echo middleware that records a READ entry for every
// successful request that returns patient data: the collection, a single
// record, search, statistics, and a record's audit trail. Mutations audit
// themselves inside their service transaction; reads are recorded here after
// the handler has responded, and a failed insert is logged rather than
// surfaced.
func ReadAudit(rec *Recorder, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil || !isPatientRead(c.Request()) || c.Response().Status >= http.StatusBadRequest {
				return err
			}

			entry := &Entry{
				Action:     ActionRead,
				EntityType: "patient",
				EntityID:   patientIDParam(c),
				ObjectRepr: c.Request().Method + " " + c.Request().URL.Path,
				IPAddress:  c.RealIP(),
				UserAgent:  c.Request().UserAgent(),
			}
			if recErr := rec.Record(c.Request().Context(), entry); recErr != nil {
				logger.Error().Err(recErr).
					Str("path", c.Request().URL.Path).
					Msg("read audit entry not persisted")
			}
			return nil
		}
	}
}

// isPatientRead matches GET requests under the patients resource plus the
// POST-bodied search endpoint.
func isPatientRead(r *http.Request) bool {
	path := r.URL.Path
	if !strings.Contains(path, "/patients") {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return true
	case http.MethodPost:
		return strings.HasSuffix(path, "/patients/search")
	}
	return false
}

// patientIDParam returns the patient id from the route when the read targets
// a single record. Collection reads leave it empty.
func patientIDParam(c echo.Context) string {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
