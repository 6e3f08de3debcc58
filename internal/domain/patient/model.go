package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a patient lookup matches nothing.
	ErrNotFound = errors.New("patient not found")
	// ErrConsentRequired rejects creation without explicit RGPD consent.
	ErrConsentRequired = errors.New("rgpd consent is required")
	// ErrInvalidSearchRange rejects inverted age or date ranges.
	ErrInvalidSearchRange = errors.New("invalid search range")
)

// Gender is the closed gender set.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

// Patient is a dental patient record. The identity fields listed by
// rgpd.EncryptedPatientFields are stored encrypted at rest; the repository
// applies the codec transparently so the rest of the application only ever
// sees plaintext values on this struct.
type Patient struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientNumber string    `db:"patient_number" json:"patient_number"`

	// Encrypted at rest.
	FirstName             string `db:"first_name" json:"first_name"`
	LastName              string `db:"last_name" json:"last_name"`
	SocialSecurityNumber  string `db:"social_security_number" json:"social_security_number,omitempty"`
	Address               string `db:"address" json:"address,omitempty"`
	Phone                 string `db:"phone" json:"phone,omitempty"`
	Mobile                string `db:"mobile" json:"mobile,omitempty"`
	Email                 string `db:"email" json:"email,omitempty"`
	EmergencyContactName  string `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	InsuranceNumber       string `db:"insurance_number" json:"insurance_number,omitempty"`

	// Clear, filterable in SQL.
	BirthDate                time.Time `db:"birth_date" json:"birth_date"`
	Gender                   Gender    `db:"gender" json:"gender"`
	MaritalStatus            string    `db:"marital_status" json:"marital_status,omitempty"`
	Profession               string    `db:"profession" json:"profession,omitempty"`
	PostalCode               string    `db:"postal_code" json:"postal_code,omitempty"`
	City                     string    `db:"city" json:"city,omitempty"`
	EmergencyContactRelation string    `db:"emergency_contact_relation" json:"emergency_contact_relation,omitempty"`

	Allergies          string `db:"allergies" json:"allergies,omitempty"`
	MedicalHistory     string `db:"medical_history" json:"medical_history,omitempty"`
	CurrentMedications string `db:"current_medications" json:"current_medications,omitempty"`
	MedicalNotes       string `db:"medical_notes" json:"medical_notes,omitempty"`
	InsuranceName      string `db:"insurance_name" json:"insurance_name,omitempty"`

	// RGPDConsentDate is set the first time consent is recorded and never
	// moves afterwards.
	RGPDConsent      bool       `db:"rgpd_consent" json:"rgpd_consent"`
	RGPDConsentDate  *time.Time `db:"rgpd_consent_date" json:"rgpd_consent_date,omitempty"`
	MarketingConsent bool       `db:"marketing_consent" json:"marketing_consent"`

	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	CreatedBy *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
}

// daysPerYear is the approximation used for ages and age-band statistics.
const daysPerYear = 365.25

// Age returns the patient's age in whole years at the given instant.
func (p *Patient) Age(now time.Time) int {
	if p.BirthDate.IsZero() || now.Before(p.BirthDate) {
		return 0
	}
	days := now.Sub(p.BirthDate).Hours() / 24
	return int(days / daysPerYear)
}

// FullName is the display name used in audit object representations.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Statistics is the aggregate view for the practice dashboard.
type Statistics struct {
	Total            int            `json:"total_patients"`
	ByGender         map[Gender]int `json:"by_gender"`
	CreatedThisMonth int            `json:"created_this_month"`
	AgeBands         map[string]int `json:"age_bands"`
}
