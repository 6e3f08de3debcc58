package rgpd

// EncryptedPatientFields lists the patient columns that hold directly
// identifying data and are stored encrypted at rest. Non-identifying fields
// (gender, birth date, postal code, consent flags, medical notes) stay in
// clear so they remain filterable in SQL.
//
// The patient repository is the single place that applies the codec; this
// list documents the contract and anchors the coverage test.
func EncryptedPatientFields() []string {
	return []string{
		"first_name",
		"last_name",
		"social_security_number",
		"address",
		"phone",
		"mobile",
		"email",
		"emergency_contact_name",
		"emergency_contact_phone",
		"insurance_number",
	}
}
