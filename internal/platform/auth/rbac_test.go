package auth

import "testing"

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"DENTIST", "SECRETARY", "ASSISTANT", "CLINIC_ADMIN"} {
		if _, err := ParseRole(valid); err != nil {
			t.Errorf("ParseRole(%q): %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "dentist", "ADMIN", "SUPERUSER"} {
		if _, err := ParseRole(invalid); err == nil {
			t.Errorf("ParseRole(%q) accepted an unknown role", invalid)
		}
	}
}

func TestCapabilityTable(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleDentist, CapPatientRead, true},
		{RoleDentist, CapPatientWrite, true},
		{RoleDentist, CapPatientDelete, true},
		{RoleDentist, CapPatientStats, true},
		{RoleDentist, CapPatientAuditRead, true},
		{RoleDentist, CapAuditReadAll, true},
		{RoleDentist, CapUserManage, false},

		{RoleClinicAdmin, CapPatientDelete, true},
		{RoleClinicAdmin, CapUserManage, true},
		{RoleClinicAdmin, CapAuditReadAll, true},

		{RoleSecretary, CapPatientRead, true},
		{RoleSecretary, CapPatientWrite, true},
		{RoleSecretary, CapPatientDelete, false},
		{RoleSecretary, CapPatientStats, false},
		{RoleSecretary, CapAuditReadAll, false},
		{RoleSecretary, CapUserManage, false},

		{RoleAssistant, CapPatientRead, true},
		{RoleAssistant, CapPatientWrite, false},
		{RoleAssistant, CapPatientDelete, false},
		{RoleAssistant, CapUserManage, false},
	}

	for _, c := range cases {
		if got := c.role.Can(c.cap); got != c.want {
			t.Errorf("%s.Can(%s) = %v, want %v", c.role, c.cap, got, c.want)
		}
	}
}

func TestUnknownRoleHasNoCapabilities(t *testing.T) {
	bogus := Role("SUPERUSER")
	for _, cap := range []Capability{
		CapPatientRead, CapPatientWrite, CapPatientDelete,
		CapPatientStats, CapPatientAuditRead, CapAuditReadAll, CapUserManage,
	} {
		if bogus.Can(cap) {
			t.Errorf("unknown role granted %s", cap)
		}
	}
}
