package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Role is the closed set of staff roles within a clinic.
type Role string

const (
	RoleDentist     Role = "DENTIST"
	RoleSecretary   Role = "SECRETARY"
	RoleAssistant   Role = "ASSISTANT"
	RoleClinicAdmin Role = "CLINIC_ADMIN"
)

// ErrUnknownRole is returned for role strings outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDentist, RoleSecretary, RoleAssistant, RoleClinicAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Capability names a gated operation. The capability table below is the one
// place the permission matrix lives; handlers and services check capabilities
// instead of comparing role strings.
type Capability string

const (
	CapPatientRead      Capability = "patient:read"
	CapPatientWrite     Capability = "patient:write"
	CapPatientDelete    Capability = "patient:delete"
	CapPatientStats     Capability = "patient:stats"
	CapPatientAuditRead Capability = "patient:audit_read"
	CapAuditReadAll     Capability = "audit:read_all"
	CapUserManage       Capability = "user:manage"
)

var capabilities = map[Role]map[Capability]bool{
	RoleDentist: {
		CapPatientRead:      true,
		CapPatientWrite:     true,
		CapPatientDelete:    true,
		CapPatientStats:     true,
		CapPatientAuditRead: true,
		CapAuditReadAll:     true,
	},
	RoleClinicAdmin: {
		CapPatientRead:      true,
		CapPatientWrite:     true,
		CapPatientDelete:    true,
		CapPatientStats:     true,
		CapPatientAuditRead: true,
		CapAuditReadAll:     true,
		CapUserManage:       true,
	},
	RoleSecretary: {
		CapPatientRead:  true,
		CapPatientWrite: true,
	},
	RoleAssistant: {
		CapPatientRead: true,
	},
}

// Can reports whether the role grants the capability.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// RequireCapability returns middleware that rejects requests whose
// authenticated role lacks the capability. The response does not reveal
// whether the target resource exists.
func RequireCapability(c Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			id, ok := IdentityFromContext(ec.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !id.Role.Can(c) {
				return echo.NewHTTPError(http.StatusForbidden, "operation not permitted for role")
			}
			return next(ec)
		}
	}
}
