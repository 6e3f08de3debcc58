package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the shared-schema tenant registry. It is the only store the
// router consults before any tenant partition is entered, so every query here
// uses fully qualified shared.* table names and never depends on search_path.
type Repository interface {
	InsertClinic(ctx context.Context, c *Clinic) error
	GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetClinicBySchema(ctx context.Context, schema string) (*Clinic, error)
	SetClinicActive(ctx context.Context, id uuid.UUID, active bool) error

	// ResolveDomain returns the clinic a routing domain is bound to.
	ResolveDomain(ctx context.Context, domain string) (*Clinic, error)

	InsertDomain(ctx context.Context, d *Domain) error
	ListDomains(ctx context.Context, clinicID uuid.UUID) ([]*Domain, error)
	// SetPrimaryDomain atomically demotes the current primary and promotes
	// the given domain within one transaction.
	SetPrimaryDomain(ctx context.Context, clinicID, domainID uuid.UUID) error
}
