package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SirMusk17/e-dental/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const clinicColumns = `id, name, schema_name, address, phone, email, siret, timezone,
	active, default_appointment_minutes, emergency_slots_per_day, created_at`

func (r *repoPG) InsertClinic(ctx context.Context, c *Clinic) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO shared.clinic (`+clinicColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.Name, c.Schema, c.Address, c.Phone, c.Email, c.Siret, c.Timezone,
		c.Active, c.DefaultAppointmentMinutes, c.EmergencySlotsPerDay, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert clinic: %w", err)
	}
	return nil
}

func (r *repoPG) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clinicColumns+` FROM shared.clinic WHERE id = $1`, id)
	return scanClinic(row)
}

func (r *repoPG) GetClinicBySchema(ctx context.Context, schema string) (*Clinic, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clinicColumns+` FROM shared.clinic WHERE schema_name = $1`, schema)
	return scanClinic(row)
}

func (r *repoPG) SetClinicActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE shared.clinic SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update clinic active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrTenantNotFound
	}
	return nil
}

func (r *repoPG) ResolveDomain(ctx context.Context, domain string) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+qualifyClinic(clinicColumns)+`
		FROM shared.clinic c
		JOIN shared.clinic_domain d ON d.clinic_id = c.id
		WHERE d.domain = $1`, strings.ToLower(domain))
	return scanClinic(row)
}

func (r *repoPG) InsertDomain(ctx context.Context, d *Domain) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.Domain = strings.ToLower(d.Domain)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO shared.clinic_domain (id, clinic_id, domain, is_primary, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.ClinicID, d.Domain, d.IsPrimary, d.CreatedAt,
	)
	if err != nil {
		return mapDomainInsertError(err)
	}
	return nil
}

// mapDomainInsertError translates the two unique violations on clinic_domain
// into their sentinels: the partial index guarding a single primary per
// clinic, and the global uniqueness of the domain name.
func mapDomainInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "one_primary_per_clinic" {
			return ErrMultiplePrimaryDomains
		}
		return ErrDuplicateDomain
	}
	return fmt.Errorf("insert domain: %w", err)
}

func (r *repoPG) ListDomains(ctx context.Context, clinicID uuid.UUID) ([]*Domain, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, domain, is_primary, created_at
		FROM shared.clinic_domain
		WHERE clinic_id = $1
		ORDER BY is_primary DESC, domain`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	var domains []*Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.ID, &d.ClinicID, &d.Domain, &d.IsPrimary, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return domains, nil
}

// SetPrimaryDomain demotes and promotes in one transaction so no reader ever
// observes zero or two primaries for the clinic.
func (r *repoPG) SetPrimaryDomain(ctx context.Context, clinicID, domainID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		UPDATE shared.clinic_domain SET is_primary = FALSE
		WHERE clinic_id = $1 AND is_primary`, clinicID)
	if err != nil {
		return fmt.Errorf("demote primary domain: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE shared.clinic_domain SET is_primary = TRUE
		WHERE id = $1 AND clinic_id = $2`, domainID, clinicID)
	if err != nil {
		return fmt.Errorf("promote primary domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("domain %s not found for clinic %s", domainID, clinicID)
	}

	return tx.Commit(ctx)
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(
		&c.ID, &c.Name, &c.Schema, &c.Address, &c.Phone, &c.Email, &c.Siret,
		&c.Timezone, &c.Active, &c.DefaultAppointmentMinutes,
		&c.EmergencySlotsPerDay, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan clinic: %w", err)
	}
	return &c, nil
}

func qualifyClinic(cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = "c." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
