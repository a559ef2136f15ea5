package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/medchain/identity-service/internal/models"
)

// buildEntity maps a validated role submission onto the variant's entity
// record, encrypting every stored field. License numbers additionally get a
// deterministic hash so the unique index can reject duplicates without
// decryption.
func (s *RegistrationService) buildEntity(role models.Role, userID uint, fields map[string]any) (models.RoleEntity, error) {
	now := time.Now().UTC()

	var encErr error
	enc := func(name string) string {
		if encErr != nil {
			return ""
		}
		value, ok := fields[name]
		if !ok || value == nil {
			return ""
		}
		out, err := s.vault.Encrypt(fieldString(value))
		if err != nil {
			encErr = err
		}
		return out
	}
	pending := func() string {
		if encErr != nil {
			return ""
		}
		out, err := s.vault.Encrypt(models.StatusPending)
		if err != nil {
			encErr = err
		}
		return out
	}
	license := fieldString(fields["license_number"])

	var entity models.RoleEntity
	switch role {
	case models.RolePatient:
		patientID, err := s.vault.Encrypt(uuid.NewString())
		if err != nil {
			return nil, err
		}
		entity = &models.Patient{
			UserID:                  userID,
			BirthyearEncrypted:      enc("birthyear"),
			ProfileImageEncrypted:   enc("profile_image"),
			PatientIDEncrypted:      patientID,
			IDProofEncrypted:        enc("id_proof"),
			InsuranceEncrypted:      enc("insurance"),
			MedicalHistoryEncrypted: enc("medical_history"),
			BloodTypeEncrypted:      enc("blood_type"),
			SubmissionDate:          now,
			Decision:                models.Decision{StatusEncrypted: pending()},
		}
	case models.RoleDoctor:
		entity = &models.Doctor{
			UserID:                   userID,
			SpecialtyEncrypted:       enc("specialty"),
			ProfileImageEncrypted:    enc("profile_image"),
			LicenseNumberEncrypted:   enc("license_number"),
			LicenseNumberHash:        s.vault.LookupHash(license),
			LicenseDocumentEncrypted: enc("license_document"),
			DegreeEncrypted:          enc("degree"),
			AvailableHoursEncrypted:  enc("available_hours"),
			LanguagesEncrypted:       enc("languages"),
			HospitalID:               fieldID(fields, "hospital_id"),
			SubmissionDate:           now,
			Decision:                 models.Decision{StatusEncrypted: pending()},
		}
	case models.RoleHospital:
		entity = &models.Hospital{
			UserID:                         userID,
			LogoEncrypted:                  enc("logo"),
			TypeEncrypted:                  enc("type"),
			BedsEncrypted:                  enc("beds"),
			EstablishedEncrypted:           enc("established"),
			AddressEncrypted:               enc("address"),
			LicenseNumberEncrypted:         enc("license_number"),
			LicenseNumberHash:              s.vault.LookupHash(license),
			LicenseDocumentEncrypted:       enc("license_document"),
			AccreditationDocumentEncrypted: enc("accreditation"),
			OperatingHoursEncrypted:        enc("operating_hours"),
			EmergencyServicesEncrypted:     enc("emergency_services"),
			MedicalStaffEncrypted:          enc("medical_staff"),
			WebsiteEncrypted:               enc("website"),
			SubmissionDate:                 now,
			Decision:                       models.Decision{StatusEncrypted: pending()},
		}
	case models.RoleHospitalAdmin:
		entity = &models.HospitalAdmin{
			UserID:                          userID,
			ProfileImageEncrypted:           enc("profile_image"),
			AdminIDEncrypted:                enc("admin_id"),
			DepartmentEncrypted:             enc("department"),
			QualificationsEncrypted:         enc("qualifications"),
			AccessLevelEncrypted:            enc("access_level"),
			LicenseDocumentEncrypted:        enc("license_document"),
			EmploymentVerificationEncrypted: enc("employment_verification"),
			HospitalID:                      fieldID(fields, "hospital_id"),
			SubmissionDate:                  now,
			Decision:                        models.Decision{StatusEncrypted: pending()},
		}
	case models.RolePharmacy:
		entity = &models.Pharmacy{
			UserID:                         userID,
			LogoEncrypted:                  enc("logo"),
			AddressEncrypted:               enc("address"),
			TypeEncrypted:                  enc("type"),
			LicenseNumberEncrypted:         enc("license_number"),
			LicenseNumberHash:              s.vault.LookupHash(license),
			EstablishedEncrypted:           enc("established"),
			PrescriptionsFilledEncrypted:   enc("prescriptions_filled"),
			PharmacistsCountEncrypted:      enc("pharmacists_count"),
			OperatingHoursEncrypted:        enc("operating_hours"),
			InventorySizeEncrypted:         enc("inventory_size"),
			LicenseDocumentEncrypted:       enc("license_document"),
			AccreditationDocumentEncrypted: enc("accreditation"),
			SubmissionDate:                 now,
			Decision:                       models.Decision{StatusEncrypted: pending()},
		}
	case models.RolePharmacyAdmin:
		entity = &models.PharmacyAdmin{
			UserID:                  userID,
			ProfileImageEncrypted:   enc("profile_image"),
			AdminIDEncrypted:        enc("admin_id"),
			AccessLevelEncrypted:    enc("access_level"),
			PharmacistCertEncrypted: enc("pharmacist_cert"),
			PharmacyID:              fieldID(fields, "pharmacy_id"),
			SubmissionDate:          now,
			Decision:                models.Decision{StatusEncrypted: pending()},
		}
	case models.RolePharmacist:
		entity = &models.Pharmacist{
			UserID:                   userID,
			LicenseNumberEncrypted:   enc("license_number"),
			LicenseNumberHash:        s.vault.LookupHash(license),
			ProfileImageEncrypted:    enc("profile_image"),
			PharmacistCertEncrypted:  enc("pharmacist_cert"),
			SpecializationEncrypted:  enc("specialization"),
			YearsExperienceEncrypted: enc("years_experience"),
			DegreeEncrypted:          enc("degree"),
			PharmacyID:               fieldID(fields, "pharmacy_id"),
			SubmissionDate:           now,
			Decision:                 models.Decision{StatusEncrypted: pending()},
		}
	case models.RoleAdmin:
		entity = &models.Admin{
			UserID:                 userID,
			ProfileImageEncrypted:  enc("profile_image"),
			SecurityLevelEncrypted: enc("security_level"),
			AuditAccessEncrypted:   enc("audit_access"),
			SubmissionDate:         now,
			Decision:               models.Decision{StatusEncrypted: pending()},
		}
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	if encErr != nil {
		return nil, encErr
	}
	return entity, nil
}

// fieldString renders a decoded JSON value for encryption. Whole numbers
// drop the float suffix so ids and years round-trip cleanly.
func fieldString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

func fieldID(fields map[string]any, name string) *uint {
	v, ok := fields[name]
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok || f < 1 {
		return nil
	}
	id := uint(f)
	return &id
}
