package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	for _, role := range Roles {
		assert.True(t, role.Valid())
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestSpecForCoversEveryRole(t *testing.T) {
	for _, role := range Roles {
		spec, ok := SpecFor(role)
		require.True(t, ok, "missing spec for %s", role)
		assert.NotEmpty(t, spec.Required)
	}
}

func validDoctorFields() map[string]any {
	return map[string]any{
		"license_number": "ABCD1234",
		"specialty":      "Cardiology",
		"hospital_id":    float64(7),
		"degree":         "MD",
	}
}

func TestValidateDoctorFields(t *testing.T) {
	require.NoError(t, ValidateRoleFields(RoleDoctor, validDoctorFields()))

	// 12-char license also accepted
	f := validDoctorFields()
	f["license_number"] = "ABCD1234EFGH"
	require.NoError(t, ValidateRoleFields(RoleDoctor, f))

	f = validDoctorFields()
	f["license_number"] = "ABC123"
	assert.Error(t, ValidateRoleFields(RoleDoctor, f))

	f = validDoctorFields()
	f["specialty"] = "Astrology"
	assert.Error(t, ValidateRoleFields(RoleDoctor, f))

	f = validDoctorFields()
	f["degree"] = "PhD"
	assert.Error(t, ValidateRoleFields(RoleDoctor, f))

	f = validDoctorFields()
	delete(f, "license_number")
	assert.Error(t, ValidateRoleFields(RoleDoctor, f))
}

func TestValidateHospitalFields(t *testing.T) {
	fields := map[string]any{
		"license_number":     "HOSP-2024-001",
		"address":            "12 Long Street, Springfield",
		"established":        "1985-06-01",
		"type":               "general",
		"logo":               "logo.png",
		"beds":               float64(120),
		"operating_hours":    "24/7",
		"emergency_services": true,
		"accreditation":      "joint-commission.pdf",
	}
	require.NoError(t, ValidateRoleFields(RoleHospital, fields))

	fields["established"] = "01-06-1985"
	assert.Error(t, ValidateRoleFields(RoleHospital, fields))

	fields["established"] = "1985-06-01"
	fields["type"] = "veterinary"
	assert.Error(t, ValidateRoleFields(RoleHospital, fields))
}

func TestValidatePatientFields(t *testing.T) {
	fields := map[string]any{
		"birthyear": float64(1990),
		"id_proof":  "national-id-123",
		"insurance": "INS-99887",
	}
	require.NoError(t, ValidateRoleFields(RolePatient, fields))

	fields["birthyear"] = float64(1500)
	assert.Error(t, ValidateRoleFields(RolePatient, fields))

	fields["birthyear"] = float64(1990)
	fields["id_proof"] = "short"
	assert.Error(t, ValidateRoleFields(RolePatient, fields))
}

func TestValidatePharmacyFields(t *testing.T) {
	fields := map[string]any{
		"license_number": "PHARM-004411",
		"address":        "99 Market Avenue West",
		"established":    "2001-01-15",
	}
	require.NoError(t, ValidateRoleFields(RolePharmacy, fields))

	fields["license_number"] = "LIC-004411"
	assert.Error(t, ValidateRoleFields(RolePharmacy, fields))
}

func TestValidatePharmacistFields(t *testing.T) {
	fields := map[string]any{
		"license_number": "RX12345678",
		"pharmacy_id":    float64(3),
	}
	require.NoError(t, ValidateRoleFields(RolePharmacist, fields))

	fields["license_number"] = "RX123"
	assert.Error(t, ValidateRoleFields(RolePharmacist, fields))

	fields["license_number"] = "RX1234567890"
	fields["degree"] = "PharmD"
	require.NoError(t, ValidateRoleFields(RolePharmacist, fields))

	fields["degree"] = "MD"
	assert.Error(t, ValidateRoleFields(RolePharmacist, fields))
}

func TestValidateAdminFields(t *testing.T) {
	require.NoError(t, ValidateRoleFields(RoleAdmin, map[string]any{"security_level": "elevated"}))
	assert.Error(t, ValidateRoleFields(RoleAdmin, map[string]any{"security_level": "root"}))
	assert.Error(t, ValidateRoleFields(RoleAdmin, map[string]any{}))
}

func TestValidateRejectsUnknownFields(t *testing.T) {
	f := validDoctorFields()
	f["favorite_color"] = "blue"
	assert.Error(t, ValidateRoleFields(RoleDoctor, f))
}

func TestValidateUnknownRole(t *testing.T) {
	assert.Error(t, ValidateRoleFields(Role("wizard"), map[string]any{}))
}

func TestNewRoleEntityVariants(t *testing.T) {
	for _, role := range Roles {
		entity, err := NewRoleEntity(role)
		require.NoError(t, err)
		assert.Equal(t, role, entity.EntityRole())
	}
	_, err := NewRoleEntity(Role("wizard"))
	assert.Error(t, err)
}
