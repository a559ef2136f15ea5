package services

import (
	"testing"

	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builderFixture(t *testing.T) (*RegistrationService, *crypto.Vault) {
	t.Helper()
	key := make([]byte, 32)
	vault, err := crypto.NewVault(key, []byte("pepper"), []byte("phone"), []byte("sig"))
	require.NoError(t, err)
	return &RegistrationService{vault: vault}, vault
}

func TestBuildDoctorEntity(t *testing.T) {
	svc, vault := builderFixture(t)

	entity, err := svc.buildEntity(models.RoleDoctor, 7, map[string]any{
		"license_number": "ABCD1234",
		"specialty":      "Cardiology",
		"degree":         "MD",
		"hospital_id":    float64(3),
	})
	require.NoError(t, err)

	doctor, ok := entity.(*models.Doctor)
	require.True(t, ok)
	assert.Equal(t, uint(7), doctor.UserID)
	require.NotNil(t, doctor.HospitalID)
	assert.Equal(t, uint(3), *doctor.HospitalID)
	assert.False(t, doctor.Verified)
	assert.False(t, doctor.SubmissionDate.IsZero())

	// columns hold ciphertext, lookups go through the hash
	assert.NotEqual(t, "ABCD1234", doctor.LicenseNumberEncrypted)
	assert.Equal(t, vault.LookupHash("ABCD1234"), doctor.LicenseNumberHash)

	license, err := vault.Decrypt(doctor.LicenseNumberEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", license)

	status, err := vault.Decrypt(doctor.StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)
}

func TestBuildPatientGeneratesPatientID(t *testing.T) {
	svc, vault := builderFixture(t)

	entity, err := svc.buildEntity(models.RolePatient, 9, map[string]any{
		"birthyear": float64(1990),
		"id_proof":  "national-id-123",
		"insurance": "INS-99887",
	})
	require.NoError(t, err)

	patient := entity.(*models.Patient)
	assert.NotEmpty(t, patient.PatientIDEncrypted)

	birthyear, err := vault.Decrypt(patient.BirthyearEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "1990", birthyear)

	// omitted optional fields stay empty, not encrypted empties
	assert.Empty(t, patient.BloodTypeEncrypted)
}

func TestBuildEntityUnknownRole(t *testing.T) {
	svc, _ := builderFixture(t)
	_, err := svc.buildEntity(models.Role("wizard"), 1, map[string]any{})
	assert.Error(t, err)
}

func TestFieldString(t *testing.T) {
	assert.Equal(t, "plain", fieldString("plain"))
	assert.Equal(t, "1985", fieldString(float64(1985)))
	assert.Equal(t, "2.5", fieldString(2.5))
	assert.Equal(t, "true", fieldString(true))
	assert.Equal(t, "", fieldString(nil))
	assert.Equal(t, `["en","fr"]`, fieldString([]any{"en", "fr"}))
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "license_number", snakeCase("LicenseNumber"))
	assert.Equal(t, "admin_id", snakeCase("AdminID"))
	assert.Equal(t, "id_proof", snakeCase("IDProof"))
	assert.Equal(t, "hospital_id", snakeCase("HospitalID"))
	assert.Equal(t, "type", snakeCase("Type"))
}

func TestAdminServiceView(t *testing.T) {
	key := make([]byte, 32)
	vault, err := crypto.NewVault(key, []byte("pepper"), []byte("phone"), []byte("sig"))
	require.NoError(t, err)
	admin := NewAdminService(nil, nil, vault, nil)

	specialty, err := vault.Encrypt("Cardiology")
	require.NoError(t, err)
	status, err := vault.Encrypt(models.StatusPending)
	require.NoError(t, err)
	hospitalID := uint(4)

	view := admin.view(&models.Doctor{
		UserID:             12,
		SpecialtyEncrypted: specialty,
		HospitalID:         &hospitalID,
		Decision:           models.Decision{StatusEncrypted: status},
	})

	assert.Equal(t, uint(12), view.UserID)
	assert.Equal(t, models.RoleDoctor, view.Role)
	assert.Equal(t, models.StatusPending, view.Status)
	assert.False(t, view.Verified)
	assert.Equal(t, "Cardiology", view.Fields["specialty"])
	assert.Equal(t, "4", view.Fields["hospital_id"])
	_, present := view.Fields["license_number"]
	assert.False(t, present)
}

// Rejection clears the verified flag, so an unverified listing carries both
// pending and rejected rows; the review queue must keep only the pending
// ones.
func TestRejectedEntitiesLeaveReviewQueue(t *testing.T) {
	key := make([]byte, 32)
	vault, err := crypto.NewVault(key, []byte("pepper"), []byte("phone"), []byte("sig"))
	require.NoError(t, err)
	admin := NewAdminService(nil, nil, vault, nil)

	pendingStatus, err := vault.Encrypt(models.StatusPending)
	require.NoError(t, err)
	rejectedStatus, err := vault.Encrypt(models.StatusRejected)
	require.NoError(t, err)

	views := []EntityView{
		admin.view(&models.Doctor{UserID: 1, Decision: models.Decision{StatusEncrypted: pendingStatus}}),
		admin.view(&models.Doctor{UserID: 2, Decision: models.Decision{StatusEncrypted: rejectedStatus}}),
		admin.view(&models.Doctor{UserID: 3, Decision: models.Decision{StatusEncrypted: pendingStatus}}),
	}

	kept := awaitingReview(views)
	require.Len(t, kept, 2)
	assert.Equal(t, uint(1), kept[0].UserID)
	assert.Equal(t, uint(3), kept[1].UserID)
}
