package auditlog

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/SirMusk17/e-dental/internal/platform/auth"
)

func readAuditServer(repo *fakeRepo) *echo.Echo {
	e := echo.New()
	g := e.Group("/api/v1", ReadAudit(NewRecorder(repo, zerolog.Nop()), zerolog.Nop()))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	g.GET("/patients", ok)
	g.GET("/patients/:id", ok)
	g.POST("/patients/search", ok)
	g.GET("/patients/:id/audit_log", ok)
	g.POST("/patients", ok)
	g.GET("/users/me", ok)
	g.GET("/patients/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})
	return e
}

func TestReadAuditRecordsPatientReads(t *testing.T) {
	repo := &fakeRepo{}
	e := readAuditServer(repo)
	patientID := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+patientID, nil)
	req.Header.Set("User-Agent", "e-dental-test")
	req.Header.Set("X-Real-IP", "203.0.113.10")
	e.ServeHTTP(httptest.NewRecorder(), req)

	if len(repo.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Action != ActionRead || entry.EntityType != "patient" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.EntityID != patientID {
		t.Errorf("entity id = %q, want %q", entry.EntityID, patientID)
	}
	if entry.IPAddress != "203.0.113.10" || entry.UserAgent != "e-dental-test" {
		t.Errorf("client attribution missing: ip=%q ua=%q", entry.IPAddress, entry.UserAgent)
	}
}

func TestReadAuditCoversCollectionAndSearch(t *testing.T) {
	repo := &fakeRepo{}
	e := readAuditServer(repo)

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/patients/search", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+uuid.NewString()+"/audit_log", nil))

	if len(repo.entries) != 3 {
		t.Fatalf("audit entries = %d, want 3", len(repo.entries))
	}
	for _, entry := range repo.entries {
		if entry.Action != ActionRead {
			t.Errorf("action = %s, want READ", entry.Action)
		}
	}
	if repo.entries[0].EntityID != "" || repo.entries[1].EntityID != "" {
		t.Error("collection reads should carry no entity id")
	}
}

func TestReadAuditFillsActorFromIdentity(t *testing.T) {
	repo := &fakeRepo{}
	actor := auth.Identity{UserID: uuid.New(), Username: "dr.dupont", Role: auth.RoleDentist}

	e := echo.New()
	withActor := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), actor)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
	g := e.Group("/api/v1", withActor, ReadAudit(NewRecorder(repo, zerolog.Nop()), zerolog.Nop()))
	g.GET("/patients", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil))

	if len(repo.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ActorID == nil || *entry.ActorID != actor.UserID || entry.ActorName != "dr.dupont" {
		t.Fatalf("actor not taken from the authenticated identity: %+v", entry)
	}
}

func TestReadAuditSkipsMutationsAndOtherResources(t *testing.T) {
	repo := &fakeRepo{}
	e := readAuditServer(repo)

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/patients", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

	if len(repo.entries) != 0 {
		t.Fatalf("audit entries = %d, want 0", len(repo.entries))
	}
}

func TestReadAuditSkipsFailedReads(t *testing.T) {
	repo := &fakeRepo{}
	e := readAuditServer(repo)

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/patients/missing", nil))

	if len(repo.entries) != 0 {
		t.Fatalf("failed read was audited: %d entries", len(repo.entries))
	}
}

func TestReadAuditFailureDoesNotFailTheRead(t *testing.T) {
	repo := &fakeRepo{failInsert: errors.New("connection reset")}
	e := readAuditServer(repo)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
