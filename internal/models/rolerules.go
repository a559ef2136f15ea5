package models

import (
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Fixed vocabularies for role-specific fields.
var (
	MedicalSpecialties  = []string{"Cardiology", "Neurology", "Orthopedics", "Pediatrics", "Dermatology"}
	MedicalDegrees      = []string{"MD", "DO", "MBBS", "BDS", "DVM"}
	HospitalTypes       = []string{"general", "specialty", "clinic"}
	PharmacyDegrees     = []string{"PharmD", "BPharm", "MPharm", "DPharm"}
	AdminSecurityLevels = []string{"standard", "elevated", "super"}
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// RoleSpec declares, per role variant, which submission fields are required,
// which are accepted, and the constraint set for each. Validation rules live
// here as data rather than inline in the handler.
type RoleSpec struct {
	Required []string
	Optional []string
	Rules    map[string][]validation.Rule
}

// Fields returns every field name the role accepts.
func (s RoleSpec) Fields() []string {
	out := make([]string, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	out = append(out, s.Optional...)
	return out
}

// roleSpecs is the variant dispatch table for role submissions.
var roleSpecs = map[Role]RoleSpec{
	RolePatient: {
		Required: []string{"birthyear", "id_proof", "insurance"},
		Optional: []string{"profile_image", "medical_history", "blood_type"},
		Rules: map[string][]validation.Rule{
			"birthyear": {validation.By(yearInRange(1900))},
			"id_proof":  {validation.By(stringMinLen(11))},
			"insurance": {validation.By(stringMinLen(6))},
		},
	},
	RoleDoctor: {
		Required: []string{"license_number", "specialty", "hospital_id", "degree"},
		Optional: []string{"profile_image", "available_hours", "languages", "license_document"},
		Rules: map[string][]validation.Rule{
			"license_number": {validation.By(stringLenIn(8, 12))},
			"specialty":      {validation.By(oneOf(MedicalSpecialties))},
			"degree":         {validation.By(oneOf(MedicalDegrees))},
			"hospital_id":    {validation.By(positiveID)},
		},
	},
	RoleHospital: {
		Required: []string{
			"license_number", "address", "established", "type", "logo",
			"beds", "operating_hours", "emergency_services", "accreditation",
		},
		Optional: []string{"medical_staff", "website", "license_document"},
		Rules: map[string][]validation.Rule{
			"address":     {validation.By(stringMinLen(11))},
			"established": {validation.By(isoDate)},
			"type":        {validation.By(oneOf(HospitalTypes))},
		},
	},
	RoleHospitalAdmin: {
		Required: []string{"hospital_id", "admin_id", "department", "qualifications"},
		Optional: []string{"profile_image", "access_level", "employment_verification", "license_document"},
		Rules: map[string][]validation.Rule{
			"hospital_id": {validation.By(positiveID)},
			"admin_id":    {validation.By(stringLenIn(8))},
		},
	},
	RolePharmacy: {
		Required: []string{"license_number", "address", "established"},
		Optional: []string{
			"logo", "operating_hours", "inventory_size", "accreditation",
			"prescriptions_filled", "pharmacists_count", "type", "license_document",
		},
		Rules: map[string][]validation.Rule{
			"license_number": {validation.By(stringPrefix("PHARM-"))},
			"address":        {validation.By(stringMinLen(11))},
			"established":    {validation.By(isoDate)},
		},
	},
	RolePharmacyAdmin: {
		Required: []string{"pharmacy_id", "admin_id"},
		Optional: []string{"profile_image", "access_level", "pharmacist_cert"},
		Rules: map[string][]validation.Rule{
			"pharmacy_id": {validation.By(positiveID)},
			"admin_id":    {validation.By(stringLenIn(8))},
		},
	},
	RolePharmacist: {
		Required: []string{"license_number", "pharmacy_id"},
		Optional: []string{"specialization", "years_experience", "degree", "profile_image", "pharmacist_cert"},
		Rules: map[string][]validation.Rule{
			"license_number": {validation.By(stringLenIn(10, 12))},
			"pharmacy_id":    {validation.By(positiveID)},
			"degree":         {validation.By(oneOf(PharmacyDegrees))},
		},
	},
	RoleAdmin: {
		Required: []string{"security_level"},
		Optional: []string{"profile_image", "audit_access"},
		Rules: map[string][]validation.Rule{
			"security_level": {validation.By(oneOf(AdminSecurityLevels))},
		},
	},
}

// SpecFor returns the submission spec for a role.
func SpecFor(role Role) (RoleSpec, bool) {
	spec, ok := roleSpecs[role]
	return spec, ok
}

// ValidateRoleFields checks a role submission payload against the variant's
// spec: required presence, then per-field rules for every supplied field.
func ValidateRoleFields(role Role, fields map[string]any) error {
	spec, ok := roleSpecs[role]
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	for _, name := range spec.Required {
		if _, present := fields[name]; !present {
			return fmt.Errorf("missing required field %s", name)
		}
	}
	known := make(map[string]bool, len(spec.Required)+len(spec.Optional))
	for _, name := range spec.Fields() {
		known[name] = true
	}
	for name := range fields {
		if !known[name] {
			return fmt.Errorf("unknown field %s", name)
		}
	}
	for name, rules := range spec.Rules {
		value, present := fields[name]
		if !present {
			continue
		}
		if err := validation.Validate(value, rules...); err != nil {
			return fmt.Errorf("invalid value for %s", name)
		}
	}
	return nil
}

// Rule helpers below operate on decoded JSON values, so numbers arrive as
// float64 and everything else as string.

func stringMinLen(min int) validation.RuleFunc {
	return func(value interface{}) error {
		s, ok := value.(string)
		if !ok || len(s) < min {
			return fmt.Errorf("must be a string of at least %d characters", min)
		}
		return nil
	}
}

func stringLenIn(lengths ...int) validation.RuleFunc {
	return func(value interface{}) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		for _, n := range lengths {
			if len(s) == n {
				return nil
			}
		}
		return fmt.Errorf("unexpected length %d", len(s))
	}
}

func stringPrefix(prefix string) validation.RuleFunc {
	return func(value interface{}) error {
		s, ok := value.(string)
		if !ok || len(s) <= len(prefix) || s[:len(prefix)] != prefix {
			return fmt.Errorf("must start with %s", prefix)
		}
		return nil
	}
}

func oneOf(allowed []string) validation.RuleFunc {
	return func(value interface{}) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of the allowed values")
	}
}

func yearInRange(min int) validation.RuleFunc {
	return func(value interface{}) error {
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("must be a number")
		}
		year := int(f)
		if year < min || year > time.Now().Year() {
			return fmt.Errorf("year out of range")
		}
		return nil
	}
}

func positiveID(value interface{}) error {
	switch n := value.(type) {
	case float64:
		if n >= 1 && n == float64(uint(n)) {
			return nil
		}
	case int:
		if n >= 1 {
			return nil
		}
	}
	return fmt.Errorf("must be a positive integer id")
}

func isoDate(value interface{}) error {
	s, ok := value.(string)
	if !ok || !isoDatePattern.MatchString(s) {
		return fmt.Errorf("must be a YYYY-MM-DD date")
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("must be a valid date")
	}
	return nil
}
