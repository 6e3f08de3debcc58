package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMultiplePrimaryDomains is returned when a primary-domain change
	// would leave a clinic with two primaries.
	ErrMultiplePrimaryDomains = errors.New("clinic already has a primary domain")
	// ErrDuplicateDomain is returned when a routing domain is already bound
	// to a tenant. Domains are unique across all clinics.
	ErrDuplicateDomain = errors.New("domain already registered")
)

// Clinic is a tenant: one dental practice with its own isolated schema.
// Schema is assigned at creation and immutable afterwards. Clinics are
// deactivated, never hard-deleted.
type Clinic struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Schema    string    `db:"schema_name" json:"schema_name"`
	Address   string    `db:"address" json:"address,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Email     string    `db:"email" json:"email,omitempty"`
	Siret     string    `db:"siret" json:"siret,omitempty"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Business settings, per clinic.
	DefaultAppointmentMinutes int `db:"default_appointment_minutes" json:"default_appointment_minutes"`
	EmergencySlotsPerDay      int `db:"emergency_slots_per_day" json:"emergency_slots_per_day"`
}

// Domain is a routing key bound to exactly one clinic. Exactly one domain
// per clinic is primary.
type Domain struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ClinicID  uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Domain    string    `db:"domain" json:"domain"`
	IsPrimary bool      `db:"is_primary" json:"is_primary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// SchemaForName derives the immutable schema identifier from a clinic name,
// e.g. "Cabinet Dupont" -> "tenant_cabinet_dupont".
func SchemaForName(name string) (string, error) {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "", fmt.Errorf("clinic name %q yields no usable schema identifier", name)
	}
	return "tenant_" + slug, nil
}
