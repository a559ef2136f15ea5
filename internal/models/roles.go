package models

import (
	"fmt"
	"time"
)

// Role enumerates the eight professional roles an account can hold.
type Role string

const (
	RolePatient       Role = "patient"
	RoleDoctor        Role = "doctor"
	RoleHospital      Role = "hospital"
	RoleHospitalAdmin Role = "hospitalAdmin"
	RolePharmacy      Role = "pharmacy"
	RolePharmacyAdmin Role = "pharmacyAdmin"
	RolePharmacist    Role = "pharmacist"
	RoleAdmin         Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{
	RolePatient, RoleDoctor, RoleHospital, RoleHospitalAdmin,
	RolePharmacy, RolePharmacyAdmin, RolePharmacist, RoleAdmin,
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Entity statuses held (encrypted) in the role entity status column.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Decision carries the admin-controlled fields shared by every role entity.
type Decision struct {
	Verified             bool   `gorm:"not null;default:false" json:"verified"`
	StatusEncrypted      string `gorm:"type:text" json:"-"`
	DescriptionEncrypted string `gorm:"type:text" json:"-"`
}

// DecisionState returns the admin decision fields.
func (d Decision) DecisionState() Decision { return d }

// RoleEntity is implemented by all eight role profile records.
type RoleEntity interface {
	EntityRole() Role
	AccountID() uint
	DecisionState() Decision
}

// Patient is the role entity for patients.
type Patient struct {
	UserID                  uint      `gorm:"primaryKey" json:"user_id"`
	User                    *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	BirthyearEncrypted      string    `gorm:"type:text" json:"-"`
	ProfileImageEncrypted   string    `gorm:"type:text" json:"-"`
	PatientIDEncrypted      string    `gorm:"type:text" json:"-"`
	IDProofEncrypted        string    `gorm:"type:text" json:"-"`
	InsuranceEncrypted      string    `gorm:"type:text" json:"-"`
	MedicalHistoryEncrypted string    `gorm:"type:text" json:"-"`
	BloodTypeEncrypted      string    `gorm:"type:text" json:"-"`
	SubmissionDate          time.Time `json:"submission_date"`
	Decision
}

func (Patient) TableName() string { return "patients" }
func (Patient) EntityRole() Role  { return RolePatient }
func (p Patient) AccountID() uint { return p.UserID }

// Doctor is the role entity for physicians; it references its hospital by
// plain numeric id (weak reference, no cascade).
type Doctor struct {
	UserID                   uint      `gorm:"primaryKey" json:"user_id"`
	User                     *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SpecialtyEncrypted       string    `gorm:"type:text" json:"-"`
	ProfileImageEncrypted    string    `gorm:"type:text" json:"-"`
	LicenseNumberEncrypted   string    `gorm:"type:text" json:"-"`
	LicenseNumberHash        string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	LicenseDocumentEncrypted string    `gorm:"type:text" json:"-"`
	DegreeEncrypted          string    `gorm:"type:text" json:"-"`
	AvailableHoursEncrypted  string    `gorm:"type:text" json:"-"`
	LanguagesEncrypted       string    `gorm:"type:text" json:"-"`
	HospitalID               *uint     `json:"hospital_id,omitempty"`
	SubmissionDate           time.Time `json:"submission_date"`
	Decision
}

func (Doctor) TableName() string { return "doctors" }
func (Doctor) EntityRole() Role  { return RoleDoctor }
func (d Doctor) AccountID() uint { return d.UserID }

// Hospital is the role entity for hospital organizations.
type Hospital struct {
	UserID                         uint      `gorm:"primaryKey" json:"user_id"`
	User                           *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	LogoEncrypted                  string    `gorm:"type:text" json:"-"`
	TypeEncrypted                  string    `gorm:"type:text" json:"-"`
	BedsEncrypted                  string    `gorm:"type:text" json:"-"`
	EstablishedEncrypted           string    `gorm:"type:text" json:"-"`
	AddressEncrypted               string    `gorm:"type:text" json:"-"`
	LicenseNumberEncrypted         string    `gorm:"type:text" json:"-"`
	LicenseNumberHash              string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	LicenseDocumentEncrypted       string    `gorm:"type:text" json:"-"`
	AccreditationDocumentEncrypted string    `gorm:"type:text" json:"-"`
	OperatingHoursEncrypted        string    `gorm:"type:text" json:"-"`
	EmergencyServicesEncrypted     string    `gorm:"type:text" json:"-"`
	MedicalStaffEncrypted          string    `gorm:"type:text" json:"-"`
	WebsiteEncrypted               string    `gorm:"type:text" json:"-"`
	SubmissionDate                 time.Time `json:"submission_date"`
	Decision
}

func (Hospital) TableName() string { return "hospitals" }
func (Hospital) EntityRole() Role  { return RoleHospital }
func (h Hospital) AccountID() uint { return h.UserID }

// HospitalAdmin is the staff role entity for hospital administrative users.
type HospitalAdmin struct {
	UserID                          uint      `gorm:"primaryKey" json:"user_id"`
	User                            *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProfileImageEncrypted           string    `gorm:"type:text" json:"-"`
	AdminIDEncrypted                string    `gorm:"type:text" json:"-"`
	DepartmentEncrypted             string    `gorm:"type:text" json:"-"`
	QualificationsEncrypted         string    `gorm:"type:text" json:"-"`
	AccessLevelEncrypted            string    `gorm:"type:text" json:"-"`
	LastActiveEncrypted             string    `gorm:"type:text" json:"-"`
	LicenseDocumentEncrypted        string    `gorm:"type:text" json:"-"`
	EmploymentVerificationEncrypted string    `gorm:"type:text" json:"-"`
	HospitalID                      *uint     `json:"hospital_id,omitempty"`
	SubmissionDate                  time.Time `json:"submission_date"`
	Decision
}

func (HospitalAdmin) TableName() string { return "hospital_admins" }
func (HospitalAdmin) EntityRole() Role  { return RoleHospitalAdmin }
func (h HospitalAdmin) AccountID() uint { return h.UserID }

// Pharmacy is the role entity for pharmacy organizations.
type Pharmacy struct {
	UserID                         uint      `gorm:"primaryKey" json:"user_id"`
	User                           *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	LogoEncrypted                  string    `gorm:"type:text" json:"-"`
	AddressEncrypted               string    `gorm:"type:text" json:"-"`
	TypeEncrypted                  string    `gorm:"type:text" json:"-"`
	LicenseNumberEncrypted         string    `gorm:"type:text" json:"-"`
	LicenseNumberHash              string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	EstablishedEncrypted           string    `gorm:"type:text" json:"-"`
	PrescriptionsFilledEncrypted   string    `gorm:"type:text" json:"-"`
	PharmacistsCountEncrypted      string    `gorm:"type:text" json:"-"`
	OperatingHoursEncrypted        string    `gorm:"type:text" json:"-"`
	InventorySizeEncrypted         string    `gorm:"type:text" json:"-"`
	LicenseDocumentEncrypted       string    `gorm:"type:text" json:"-"`
	AccreditationDocumentEncrypted string    `gorm:"type:text" json:"-"`
	SubmissionDate                 time.Time `json:"submission_date"`
	Decision
}

func (Pharmacy) TableName() string { return "pharmacies" }
func (Pharmacy) EntityRole() Role  { return RolePharmacy }
func (p Pharmacy) AccountID() uint { return p.UserID }

// PharmacyAdmin is the staff role entity for pharmacy administrative users.
type PharmacyAdmin struct {
	UserID                  uint      `gorm:"primaryKey" json:"user_id"`
	User                    *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProfileImageEncrypted   string    `gorm:"type:text" json:"-"`
	AdminIDEncrypted        string    `gorm:"type:text" json:"-"`
	AccessLevelEncrypted    string    `gorm:"type:text" json:"-"`
	LastActiveEncrypted     string    `gorm:"type:text" json:"-"`
	PharmacistCertEncrypted string    `gorm:"type:text" json:"-"`
	PharmacyID              *uint     `json:"pharmacy_id,omitempty"`
	SubmissionDate          time.Time `json:"submission_date"`
	Decision
}

func (PharmacyAdmin) TableName() string { return "pharmacy_admins" }
func (PharmacyAdmin) EntityRole() Role  { return RolePharmacyAdmin }
func (p PharmacyAdmin) AccountID() uint { return p.UserID }

// Pharmacist is the staff role entity for licensed pharmacists.
type Pharmacist struct {
	UserID                   uint      `gorm:"primaryKey" json:"user_id"`
	User                     *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	LicenseNumberEncrypted   string    `gorm:"type:text" json:"-"`
	LicenseNumberHash        string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	ProfileImageEncrypted    string    `gorm:"type:text" json:"-"`
	PharmacistCertEncrypted  string    `gorm:"type:text" json:"-"`
	SpecializationEncrypted  string    `gorm:"type:text" json:"-"`
	YearsExperienceEncrypted string    `gorm:"type:text" json:"-"`
	DegreeEncrypted          string    `gorm:"type:text" json:"-"`
	PharmacyID               *uint     `json:"pharmacy_id,omitempty"`
	SubmissionDate           time.Time `json:"submission_date"`
	Decision
}

func (Pharmacist) TableName() string { return "pharmacists" }
func (Pharmacist) EntityRole() Role  { return RolePharmacist }
func (p Pharmacist) AccountID() uint { return p.UserID }

// Admin is the role entity for platform administrators.
type Admin struct {
	UserID                 uint      `gorm:"primaryKey" json:"user_id"`
	User                   *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProfileImageEncrypted  string    `gorm:"type:text" json:"-"`
	SecurityLevelEncrypted string    `gorm:"type:text" json:"-"`
	AuditAccessEncrypted   string    `gorm:"type:text" json:"-"`
	SubmissionDate         time.Time `json:"submission_date"`
	Decision
}

func (Admin) TableName() string { return "admins" }
func (Admin) EntityRole() Role  { return RoleAdmin }
func (a Admin) AccountID() uint { return a.UserID }

// NewRoleEntity returns a fresh, addressable entity record for the role.
func NewRoleEntity(role Role) (RoleEntity, error) {
	switch role {
	case RolePatient:
		return &Patient{}, nil
	case RoleDoctor:
		return &Doctor{}, nil
	case RoleHospital:
		return &Hospital{}, nil
	case RoleHospitalAdmin:
		return &HospitalAdmin{}, nil
	case RolePharmacy:
		return &Pharmacy{}, nil
	case RolePharmacyAdmin:
		return &PharmacyAdmin{}, nil
	case RolePharmacist:
		return &Pharmacist{}, nil
	case RoleAdmin:
		return &Admin{}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}
