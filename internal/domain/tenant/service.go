package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/SirMusk17/e-dental/internal/platform/db"
)

// Service is the tenant registry. It implements db.SchemaResolver for the
// routing middleware and owns clinic provisioning.
type Service struct {
	repo          Repository
	pool          *pgxpool.Pool
	migrationsDir string
	logger        zerolog.Logger
}

func NewService(repo Repository, pool *pgxpool.Pool, migrationsDir string, logger zerolog.Logger) *Service {
	return &Service{repo: repo, pool: pool, migrationsDir: migrationsDir, logger: logger}
}

// ResolveSchema maps a routing domain to a clinic partition. Inactive clinics
// resolve to ErrTenantInactive so the router can distinguish 403 from 404.
func (s *Service) ResolveSchema(ctx context.Context, domain string) (db.TenantRef, error) {
	c, err := s.repo.ResolveDomain(ctx, domain)
	if err != nil {
		return db.TenantRef{}, err
	}
	if !c.Active {
		return db.TenantRef{}, db.ErrTenantInactive
	}
	return db.TenantRef{ClinicID: c.ID.String(), Schema: c.Schema}, nil
}

// CreateClinicInput carries the operator-provided fields for a new tenant.
type CreateClinicInput struct {
	Name     string
	Domain   string
	Address  string
	Phone    string
	Email    string
	Siret    string
	Timezone string
}

// CreateClinic provisions a new tenant: schema plus migrations first, registry
// row last. A clinic only becomes resolvable once its partition fully exists,
// so a crash mid-provisioning leaves an orphan schema but never a routable
// tenant pointing at a missing one.
func (s *Service) CreateClinic(ctx context.Context, in CreateClinicInput) (*Clinic, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("clinic name is required")
	}
	if strings.TrimSpace(in.Domain) == "" {
		return nil, fmt.Errorf("clinic domain is required")
	}

	schema, err := SchemaForName(in.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetClinicBySchema(ctx, schema); err == nil {
		return nil, fmt.Errorf("schema %s already in use", schema)
	} else if !errors.Is(err, db.ErrTenantNotFound) {
		return nil, err
	}

	if err := db.CreateTenantSchema(ctx, s.pool, schema, s.migrationsDir); err != nil {
		return nil, fmt.Errorf("provision tenant schema: %w", err)
	}

	tz := in.Timezone
	if tz == "" {
		tz = "Europe/Paris"
	}
	clinic := &Clinic{
		Name:     strings.TrimSpace(in.Name),
		Schema:   schema,
		Address:  in.Address,
		Phone:    in.Phone,
		Email:    in.Email,
		Siret:    in.Siret,
		Timezone: tz,
		Active:   true,

		DefaultAppointmentMinutes: 30,
		EmergencySlotsPerDay:      2,
	}
	if err := s.repo.InsertClinic(ctx, clinic); err != nil {
		return nil, err
	}

	if err := s.repo.InsertDomain(ctx, &Domain{
		ClinicID:  clinic.ID,
		Domain:    in.Domain,
		IsPrimary: true,
	}); err != nil {
		return nil, fmt.Errorf("bind domain %s: %w", in.Domain, err)
	}

	s.logger.Info().
		Str("clinic_id", clinic.ID.String()).
		Str("schema", schema).
		Str("domain", strings.ToLower(in.Domain)).
		Msg("clinic provisioned")

	return clinic, nil
}

// AddDomain binds an additional routing domain to a clinic. The new domain is
// never primary; use SetPrimaryDomain to promote it.
func (s *Service) AddDomain(ctx context.Context, clinicID uuid.UUID, domain string) (*Domain, error) {
	if _, err := s.repo.GetClinic(ctx, clinicID); err != nil {
		return nil, err
	}
	d := &Domain{ClinicID: clinicID, Domain: domain, IsPrimary: false}
	if err := s.repo.InsertDomain(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetPrimaryDomain atomically moves the primary flag to the given domain.
func (s *Service) SetPrimaryDomain(ctx context.Context, clinicID, domainID uuid.UUID) error {
	return s.repo.SetPrimaryDomain(ctx, clinicID, domainID)
}

// Deactivate turns a clinic off without destroying any data. All its domains
// start resolving to ErrTenantInactive immediately.
func (s *Service) Deactivate(ctx context.Context, clinicID uuid.UUID) error {
	return s.repo.SetClinicActive(ctx, clinicID, false)
}

// Reactivate restores routing for a deactivated clinic.
func (s *Service) Reactivate(ctx context.Context, clinicID uuid.UUID) error {
	return s.repo.SetClinicActive(ctx, clinicID, true)
}

// Domains lists the routing domains bound to a clinic.
func (s *Service) Domains(ctx context.Context, clinicID uuid.UUID) ([]*Domain, error) {
	if _, err := s.repo.GetClinic(ctx, clinicID); err != nil {
		return nil, err
	}
	return s.repo.ListDomains(ctx, clinicID)
}

// Current returns the clinic resolved for this request.
func (s *Service) Current(ctx context.Context) (*Clinic, error) {
	id, err := uuid.Parse(db.ClinicIDFromContext(ctx))
	if err != nil {
		return nil, db.ErrTenantNotFound
	}
	return s.repo.GetClinic(ctx, id)
}

// CurrentDomains lists the routing domains of the clinic resolved for this
// request.
func (s *Service) CurrentDomains(ctx context.Context) ([]*Domain, error) {
	id, err := uuid.Parse(db.ClinicIDFromContext(ctx))
	if err != nil {
		return nil, db.ErrTenantNotFound
	}
	return s.repo.ListDomains(ctx, id)
}
