package patient

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
	"github.com/SirMusk17/e-dental/internal/platform/rgpd"
)

type repoPG struct {
	pool   *pgxpool.Pool
	cipher rgpd.FieldCipher
}

// NewRepoPG builds the patient repository. A nil cipher disables field
// encryption (development mode).
func NewRepoPG(pool *pgxpool.Pool, cipher rgpd.FieldCipher) Repository {
	return &repoPG{pool: pool, cipher: cipher}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// identityFields returns pointers to the struct fields that mirror
// rgpd.EncryptedPatientFields, in the same order.
func identityFields(p *Patient) []*string {
	return []*string{
		&p.FirstName,
		&p.LastName,
		&p.SocialSecurityNumber,
		&p.Address,
		&p.Phone,
		&p.Mobile,
		&p.Email,
		&p.EmergencyContactName,
		&p.EmergencyContactPhone,
		&p.InsuranceNumber,
	}
}

// seal returns a shallow copy with the identity fields encrypted, leaving the
// caller's struct plaintext.
func (r *repoPG) seal(p *Patient) (*Patient, error) {
	if r.cipher == nil {
		return p, nil
	}
	sealed := *p
	for _, f := range identityFields(&sealed) {
		enc, err := r.cipher.Encrypt(*f)
		if err != nil {
			return nil, fmt.Errorf("encrypt patient field: %w", err)
		}
		*f = enc
	}
	return &sealed, nil
}

// open decrypts the identity fields in place. Any integrity failure surfaces
// as rgpd.ErrCipherIntegrity; a record is never returned half-decrypted.
func (r *repoPG) open(p *Patient) error {
	if r.cipher == nil {
		return nil
	}
	for _, f := range identityFields(p) {
		plain, err := r.cipher.Decrypt(*f)
		if err != nil {
			return fmt.Errorf("decrypt patient %s: %w", p.ID, err)
		}
		*f = plain
	}
	return nil
}

const patientColumns = `id, patient_number, first_name, last_name, social_security_number,
	address, phone, mobile, email, emergency_contact_name, emergency_contact_phone,
	insurance_number, birth_date, gender, marital_status, profession, postal_code,
	city, emergency_contact_relation, allergies, medical_history,
	current_medications, medical_notes, insurance_name, rgpd_consent,
	rgpd_consent_date, marketing_consent, active, created_at, updated_at,
	created_by, updated_by`

func (r *repoPG) Insert(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	sealed, err := r.seal(p)
	if err != nil {
		return err
	}

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32)`,
		sealed.ID, sealed.PatientNumber, sealed.FirstName, sealed.LastName,
		sealed.SocialSecurityNumber, sealed.Address, sealed.Phone, sealed.Mobile,
		sealed.Email, sealed.EmergencyContactName, sealed.EmergencyContactPhone,
		sealed.InsuranceNumber, sealed.BirthDate, sealed.Gender, sealed.MaritalStatus,
		sealed.Profession, sealed.PostalCode, sealed.City, sealed.EmergencyContactRelation,
		sealed.Allergies, sealed.MedicalHistory, sealed.CurrentMedications,
		sealed.MedicalNotes, sealed.InsuranceName, sealed.RGPDConsent,
		sealed.RGPDConsentDate, sealed.MarketingConsent, sealed.Active,
		sealed.CreatedAt, sealed.UpdatedAt, sealed.CreatedBy, sealed.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if err != nil {
		return nil, err
	}
	if err := r.open(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()

	sealed, err := r.seal(p)
	if err != nil {
		return err
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			first_name = $2, last_name = $3, social_security_number = $4,
			address = $5, phone = $6, mobile = $7, email = $8,
			emergency_contact_name = $9, emergency_contact_phone = $10,
			insurance_number = $11, birth_date = $12, gender = $13,
			marital_status = $14, profession = $15, postal_code = $16, city = $17,
			emergency_contact_relation = $18, allergies = $19,
			medical_history = $20, current_medications = $21, medical_notes = $22,
			insurance_name = $23, rgpd_consent = $24, rgpd_consent_date = $25,
			marketing_consent = $26, updated_at = $27, updated_by = $28
		WHERE id = $1`,
		sealed.ID, sealed.FirstName, sealed.LastName, sealed.SocialSecurityNumber,
		sealed.Address, sealed.Phone, sealed.Mobile, sealed.Email,
		sealed.EmergencyContactName, sealed.EmergencyContactPhone,
		sealed.InsuranceNumber, sealed.BirthDate, sealed.Gender,
		sealed.MaritalStatus, sealed.Profession, sealed.PostalCode, sealed.City,
		sealed.EmergencyContactRelation, sealed.Allergies, sealed.MedicalHistory,
		sealed.CurrentMedications, sealed.MedicalNotes, sealed.InsuranceName,
		sealed.RGPDConsent, sealed.RGPDConsentDate, sealed.MarketingConsent,
		sealed.UpdatedAt, sealed.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool, updatedBy *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET active = $2, updated_at = now(), updated_by = $3
		WHERE id = $1`, id, active, updatedBy)
	if err != nil {
		return fmt.Errorf("update patient active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, includeInactive bool, limit, offset int) ([]*Patient, int, error) {
	where := " WHERE active"
	if includeInactive {
		where = ""
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM patients"+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientColumns+` FROM patients`+where+`
		ORDER BY patient_number
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query patients: %w", err)
	}
	patients, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *repoPG) Search(ctx context.Context, f SearchFilter) ([]*Patient, error) {
	var clauses []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if !f.IncludeInactive {
		clauses = append(clauses, "active")
	}
	if f.Gender != "" {
		add("gender = $%d", f.Gender)
	}
	now := time.Now().UTC()
	if f.AgeMin != nil {
		add("birth_date <= $%d", now.AddDate(0, 0, -int(float64(*f.AgeMin)*daysPerYear)))
	}
	if f.AgeMax != nil {
		add("birth_date > $%d", now.AddDate(0, 0, -int(float64(*f.AgeMax+1)*daysPerYear)))
	}
	if f.CreatedAfter != nil {
		add("created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created_at <= $%d", *f.CreatedBefore)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientColumns+` FROM patients`+where+`
		ORDER BY patient_number`, args...)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	return r.collect(rows)
}

// NextNumber increments the single sequence row under its row lock. Two
// concurrent creates serialize on the UPDATE, so no number is ever issued
// twice.
func (r *repoPG) NextNumber(ctx context.Context) (string, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient_sequence SET last_value = last_value + 1
		WHERE id = 1
		RETURNING last_value`).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("advance patient sequence: %w", err)
	}
	return fmt.Sprintf("P%06d", n), nil
}

func (r *repoPG) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		ByGender: map[Gender]int{},
		AgeBands: map[string]int{},
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT gender, COUNT(*) FROM patients WHERE active GROUP BY gender`)
	if err != nil {
		return nil, fmt.Errorf("gender statistics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g Gender
		var count int
		if err := rows.Scan(&g, &count); err != nil {
			return nil, fmt.Errorf("scan gender statistics: %w", err)
		}
		stats.ByGender[g] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gender statistics: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM patients
		WHERE active AND created_at >= date_trunc('month', now())`).Scan(&stats.CreatedThisMonth)
	if err != nil {
		return nil, fmt.Errorf("monthly statistics: %w", err)
	}

	bandRows, err := r.conn(ctx).Query(ctx, `
		SELECT band, COUNT(*) FROM (
			SELECT CASE
				WHEN age <= 18 THEN '0-18'
				WHEN age <= 35 THEN '19-35'
				WHEN age <= 55 THEN '36-55'
				ELSE '56+'
			END AS band
			FROM (
				SELECT floor((CURRENT_DATE - birth_date) / 365.25)::int AS age
				FROM patients WHERE active
			) ages
		) bands
		GROUP BY band`)
	if err != nil {
		return nil, fmt.Errorf("age band statistics: %w", err)
	}
	defer bandRows.Close()
	for bandRows.Next() {
		var band string
		var count int
		if err := bandRows.Scan(&band, &count); err != nil {
			return nil, fmt.Errorf("scan age band: %w", err)
		}
		stats.AgeBands[band] = count
	}
	if err := bandRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate age bands: %w", err)
	}

	return stats, nil
}

func (r *repoPG) collect(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		if err := r.open(p); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return patients, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PatientNumber, &p.FirstName, &p.LastName, &p.SocialSecurityNumber,
		&p.Address, &p.Phone, &p.Mobile, &p.Email, &p.EmergencyContactName,
		&p.EmergencyContactPhone, &p.InsuranceNumber, &p.BirthDate, &p.Gender,
		&p.MaritalStatus, &p.Profession, &p.PostalCode, &p.City,
		&p.EmergencyContactRelation, &p.Allergies, &p.MedicalHistory,
		&p.CurrentMedications, &p.MedicalNotes, &p.InsuranceName, &p.RGPDConsent,
		&p.RGPDConsentDate, &p.MarketingConsent, &p.Active, &p.CreatedAt,
		&p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}
