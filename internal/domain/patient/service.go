package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SirMusk17/e-dental/internal/domain/auditlog"
	"github.com/SirMusk17/e-dental/internal/platform/auth"
	"github.com/SirMusk17/e-dental/internal/platform/db"
)

// RequestMeta carries the client attribution attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Service implements the patient record operations. Every mutation and its
// audit entry commit in one transaction via db.InTx; if the audit insert
// fails the mutation rolls back with it.
type Service struct {
	repo     Repository
	recorder *auditlog.Recorder
	audits   *auditlog.Service
	logger   zerolog.Logger
}

func NewService(repo Repository, recorder *auditlog.Recorder, audits *auditlog.Service, logger zerolog.Logger) *Service {
	return &Service{repo: repo, recorder: recorder, audits: audits, logger: logger}
}

// CreateInput carries the client-writable fields for a new patient.
// patient_number, created_by, and the consent date are server-assigned.
type CreateInput struct {
	FirstName             string    `json:"first_name"`
	LastName              string    `json:"last_name"`
	BirthDate             time.Time `json:"birth_date"`
	Gender                Gender    `json:"gender"`
	SocialSecurityNumber  string    `json:"social_security_number"`
	Address               string    `json:"address"`
	Phone                 string    `json:"phone"`
	Mobile                string    `json:"mobile"`
	Email                 string    `json:"email"`
	MaritalStatus         string    `json:"marital_status"`
	Profession            string    `json:"profession"`
	PostalCode            string    `json:"postal_code"`
	City                  string    `json:"city"`
	EmergencyContactName  string    `json:"emergency_contact_name"`
	EmergencyContactPhone string    `json:"emergency_contact_phone"`
	EmergencyContactRel   string    `json:"emergency_contact_relation"`
	Allergies             string    `json:"allergies"`
	MedicalHistory        string    `json:"medical_history"`
	CurrentMedications    string    `json:"current_medications"`
	MedicalNotes          string    `json:"medical_notes"`
	InsuranceName         string    `json:"insurance_name"`
	InsuranceNumber       string    `json:"insurance_number"`
	RGPDConsent           bool      `json:"rgpd_consent"`
	MarketingConsent      bool      `json:"marketing_consent"`
}

// Create registers a patient. RGPD consent is a hard precondition; the
// consent date, patient number, and attribution are all server-set inside
// the create transaction.
func (s *Service) Create(ctx context.Context, in CreateInput, meta RequestMeta) (*Patient, error) {
	if !in.RGPDConsent {
		return nil, ErrConsentRequired
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, fmt.Errorf("first and last name are required")
	}
	switch in.Gender {
	case GenderMale, GenderFemale, GenderOther:
	default:
		return nil, fmt.Errorf("gender must be M, F, or O")
	}

	now := time.Now().UTC()
	p := &Patient{
		FirstName:                strings.TrimSpace(in.FirstName),
		LastName:                 strings.TrimSpace(in.LastName),
		BirthDate:                in.BirthDate,
		Gender:                   in.Gender,
		SocialSecurityNumber:     in.SocialSecurityNumber,
		Address:                  in.Address,
		Phone:                    in.Phone,
		Mobile:                   in.Mobile,
		Email:                    in.Email,
		MaritalStatus:            in.MaritalStatus,
		Profession:               in.Profession,
		PostalCode:               in.PostalCode,
		City:                     in.City,
		EmergencyContactName:     in.EmergencyContactName,
		EmergencyContactPhone:    in.EmergencyContactPhone,
		EmergencyContactRelation: in.EmergencyContactRel,
		Allergies:                in.Allergies,
		MedicalHistory:           in.MedicalHistory,
		CurrentMedications:       in.CurrentMedications,
		MedicalNotes:             in.MedicalNotes,
		InsuranceName:            in.InsuranceName,
		InsuranceNumber:          in.InsuranceNumber,
		RGPDConsent:              true,
		RGPDConsentDate:          &now,
		MarketingConsent:         in.MarketingConsent,
		Active:                   true,
	}
	if actor, ok := auth.IdentityFromContext(ctx); ok {
		actorID := actor.UserID
		p.CreatedBy = &actorID
		p.UpdatedBy = &actorID
	}

	err := db.InTx(ctx, func(ctx context.Context) error {
		number, err := s.repo.NextNumber(ctx)
		if err != nil {
			return err
		}
		p.PatientNumber = number

		if err := s.repo.Insert(ctx, p); err != nil {
			return err
		}
		return s.recorder.Record(ctx, &auditlog.Entry{
			Action:     auditlog.ActionCreate,
			EntityType: "patient",
			EntityID:   p.ID.String(),
			ObjectRepr: p.PatientNumber + " " + p.FullName(),
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("patient_number", p.PatientNumber).
		Msg("patient created")
	return p, nil
}

// UpdateInput is the allow-list for patient updates. Absent fields keep their
// stored values; patient_number, created_by, created_at, and the consent date
// have no entry here and can never be client-written.
type UpdateInput struct {
	FirstName             *string    `json:"first_name"`
	LastName              *string    `json:"last_name"`
	BirthDate             *time.Time `json:"birth_date"`
	Gender                *Gender    `json:"gender"`
	SocialSecurityNumber  *string    `json:"social_security_number"`
	Address               *string    `json:"address"`
	Phone                 *string    `json:"phone"`
	Mobile                *string    `json:"mobile"`
	Email                 *string    `json:"email"`
	MaritalStatus         *string    `json:"marital_status"`
	Profession            *string    `json:"profession"`
	PostalCode            *string    `json:"postal_code"`
	City                  *string    `json:"city"`
	EmergencyContactName  *string    `json:"emergency_contact_name"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone"`
	EmergencyContactRel   *string    `json:"emergency_contact_relation"`
	Allergies             *string    `json:"allergies"`
	MedicalHistory        *string    `json:"medical_history"`
	CurrentMedications    *string    `json:"current_medications"`
	MedicalNotes          *string    `json:"medical_notes"`
	InsuranceName         *string    `json:"insurance_name"`
	InsuranceNumber       *string    `json:"insurance_number"`
	RGPDConsent           *bool      `json:"rgpd_consent"`
	MarketingConsent      *bool      `json:"marketing_consent"`
}

// Update merges the provided fields into the stored record and audits a diff
// of exactly the fields that changed. Consent date semantics: the date is set
// the first time consent becomes true and never moves afterwards, including
// when consent is re-sent as true.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, meta RequestMeta) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]auditlog.FieldChange{}
	setStr := func(name string, dst *string, v *string) {
		if v != nil && *v != *dst {
			changes[name] = auditlog.FieldChange{Old: *dst, New: *v}
			*dst = *v
		}
	}
	setBool := func(name string, dst *bool, v *bool) {
		if v != nil && *v != *dst {
			changes[name] = auditlog.FieldChange{Old: *dst, New: *v}
			*dst = *v
		}
	}

	setStr("first_name", &p.FirstName, in.FirstName)
	setStr("last_name", &p.LastName, in.LastName)
	if in.BirthDate != nil && !in.BirthDate.Equal(p.BirthDate) {
		changes["birth_date"] = auditlog.FieldChange{Old: p.BirthDate, New: *in.BirthDate}
		p.BirthDate = *in.BirthDate
	}
	if in.Gender != nil && *in.Gender != p.Gender {
		switch *in.Gender {
		case GenderMale, GenderFemale, GenderOther:
		default:
			return nil, fmt.Errorf("gender must be M, F, or O")
		}
		changes["gender"] = auditlog.FieldChange{Old: p.Gender, New: *in.Gender}
		p.Gender = *in.Gender
	}
	setStr("social_security_number", &p.SocialSecurityNumber, in.SocialSecurityNumber)
	setStr("address", &p.Address, in.Address)
	setStr("phone", &p.Phone, in.Phone)
	setStr("mobile", &p.Mobile, in.Mobile)
	setStr("email", &p.Email, in.Email)
	setStr("marital_status", &p.MaritalStatus, in.MaritalStatus)
	setStr("profession", &p.Profession, in.Profession)
	setStr("postal_code", &p.PostalCode, in.PostalCode)
	setStr("city", &p.City, in.City)
	setStr("emergency_contact_name", &p.EmergencyContactName, in.EmergencyContactName)
	setStr("emergency_contact_phone", &p.EmergencyContactPhone, in.EmergencyContactPhone)
	setStr("emergency_contact_relation", &p.EmergencyContactRelation, in.EmergencyContactRel)
	setStr("allergies", &p.Allergies, in.Allergies)
	setStr("medical_history", &p.MedicalHistory, in.MedicalHistory)
	setStr("current_medications", &p.CurrentMedications, in.CurrentMedications)
	setStr("medical_notes", &p.MedicalNotes, in.MedicalNotes)
	setStr("insurance_name", &p.InsuranceName, in.InsuranceName)
	setStr("insurance_number", &p.InsuranceNumber, in.InsuranceNumber)
	setBool("rgpd_consent", &p.RGPDConsent, in.RGPDConsent)
	setBool("marketing_consent", &p.MarketingConsent, in.MarketingConsent)

	if p.RGPDConsent && p.RGPDConsentDate == nil {
		now := time.Now().UTC()
		p.RGPDConsentDate = &now
	}

	if len(changes) == 0 {
		return p, nil
	}

	if actor, ok := auth.IdentityFromContext(ctx); ok {
		actorID := actor.UserID
		p.UpdatedBy = &actorID
	}

	err = db.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.recorder.Record(ctx, &auditlog.Entry{
			Action:     auditlog.ActionUpdate,
			EntityType: "patient",
			EntityID:   p.ID.String(),
			ObjectRepr: p.PatientNumber + " " + p.FullName(),
			Changes:    changes,
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete deactivates the record instead of destroying it. Dental records
// carry legal retention duties, so the row and its history stay in place and
// the DELETE audit entry snapshots what was hidden.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, meta RequestMeta) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.Active {
		return ErrNotFound
	}

	var updatedBy *uuid.UUID
	if actor, ok := auth.IdentityFromContext(ctx); ok {
		actorID := actor.UserID
		updatedBy = &actorID
	}

	return db.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetActive(ctx, id, false, updatedBy); err != nil {
			return err
		}
		return s.recorder.Record(ctx, &auditlog.Entry{
			Action:     auditlog.ActionDelete,
			EntityType: "patient",
			EntityID:   p.ID.String(),
			ObjectRepr: p.PatientNumber + " " + p.FullName(),
			Changes: map[string]auditlog.FieldChange{
				"active": {Old: true, New: false},
			},
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, false, limit, offset)
}

// SearchInput is the search request. Ranges are inclusive.
type SearchInput struct {
	Query         string     `json:"query"`
	Gender        Gender     `json:"gender"`
	AgeMin        *int       `json:"age_min"`
	AgeMax        *int       `json:"age_max"`
	CreatedAfter  *time.Time `json:"created_after"`
	CreatedBefore *time.Time `json:"created_before"`
}

// Search applies the structural filters in SQL and the free-text match in
// memory, since the matched identity columns are encrypted at rest and
// opaque to SQL.
func (s *Service) Search(ctx context.Context, in SearchInput, limit, offset int) ([]*Patient, int, error) {
	if in.AgeMin != nil && in.AgeMax != nil && *in.AgeMin > *in.AgeMax {
		return nil, 0, fmt.Errorf("%w: age_min exceeds age_max", ErrInvalidSearchRange)
	}
	if in.CreatedAfter != nil && in.CreatedBefore != nil && in.CreatedAfter.After(*in.CreatedBefore) {
		return nil, 0, fmt.Errorf("%w: created_after exceeds created_before", ErrInvalidSearchRange)
	}
	if in.Gender != "" {
		switch in.Gender {
		case GenderMale, GenderFemale, GenderOther:
		default:
			return nil, 0, fmt.Errorf("gender must be M, F, or O")
		}
	}

	candidates, err := s.repo.Search(ctx, SearchFilter{
		Gender:        in.Gender,
		AgeMin:        in.AgeMin,
		AgeMax:        in.AgeMax,
		CreatedAfter:  in.CreatedAfter,
		CreatedBefore: in.CreatedBefore,
	})
	if err != nil {
		return nil, 0, err
	}

	matches := candidates
	if q := strings.ToLower(strings.TrimSpace(in.Query)); q != "" {
		matches = matches[:0:0]
		for _, p := range candidates {
			if matchesQuery(p, q) {
				matches = append(matches, p)
			}
		}
	}

	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

func matchesQuery(p *Patient, q string) bool {
	for _, field := range []string{
		p.FirstName, p.LastName, p.PatientNumber, p.Phone, p.Mobile, p.Email,
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	return s.repo.Statistics(ctx)
}

// AuditTrail returns one patient's audit entries newest-first. The patient
// must exist; the handler gates access behind patient:audit_read.
func (s *Service) AuditTrail(ctx context.Context, id uuid.UUID, limit, offset int) ([]*auditlog.Entry, int, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.audits.ListForEntity(ctx, "patient", id.String(), limit, offset)
}
