package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	SchemaKey contextKey = "tenant_schema"
	ClinicKey contextKey = "clinic_id"
	DBConnKey contextKey = "db_conn"
	TxKey     contextKey = "db_tx"
)

// Registry resolution failures. Returned by SchemaResolver implementations
// and mapped to HTTP status codes by TenantMiddleware.
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant inactive")
)

var schemaPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// TenantRef identifies a resolved tenant: the clinic id and its schema.
type TenantRef struct {
	ClinicID string
	Schema   string
}

// SchemaResolver maps an inbound routing domain to a tenant partition.
// Implemented by the tenant registry service.
type SchemaResolver interface {
	ResolveSchema(ctx context.Context, domain string) (TenantRef, error)
}

// TenantMiddleware resolves the request Host to an active clinic, acquires a
// connection scoped to that clinic's schema, and stores both in the request
// context. Every repository call downstream runs inside the tenant partition.
func TenantMiddleware(pool *pgxpool.Pool, resolver SchemaResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			domain := requestDomain(c.Request())
			ref, err := resolver.ResolveSchema(ctx, domain)
			if err != nil {
				switch {
				case errors.Is(err, ErrTenantNotFound):
					return echo.NewHTTPError(http.StatusNotFound, "unknown clinic domain")
				case errors.Is(err, ErrTenantInactive):
					return echo.NewHTTPError(http.StatusForbidden, "clinic is deactivated")
				default:
					return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
				}
			}

			if !schemaPattern.MatchString(ref.Schema) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			_, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, shared, public", ref.Schema))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
			}

			ctx = context.WithValue(ctx, SchemaKey, ref.Schema)
			ctx = context.WithValue(ctx, ClinicKey, ref.ClinicID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_schema", ref.Schema)
			c.Set("clinic_id", ref.ClinicID)

			return next(c)
		}
	}
}

// requestDomain extracts the routing domain from the request, stripping any
// port. An X-Forwarded-Host set by the reverse proxy takes precedence.
func requestDomain(r *http.Request) string {
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

// ConnFromContext retrieves the tenant-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// SchemaFromContext retrieves the tenant schema name from context.
func SchemaFromContext(ctx context.Context) string {
	schema, _ := ctx.Value(SchemaKey).(string)
	return schema
}

// ClinicIDFromContext retrieves the resolved clinic id from context.
func ClinicIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ClinicKey).(string)
	return id
}

// ValidSchemaName reports whether s is usable as a tenant schema identifier.
func ValidSchemaName(s string) bool {
	return schemaPattern.MatchString(s)
}

// CreateTenantSchema creates the schema for a new tenant and runs all
// migrations against it. If migrationsDir is empty, migrations are skipped.
// Callers that need registry-row-plus-schema atomicity wrap this in their own
// transaction discipline (see tenant.Service.CreateClinic).
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, schema string, migrationsDir string) error {
	if !schemaPattern.MatchString(schema) {
		return fmt.Errorf("invalid tenant schema: %s", schema)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
