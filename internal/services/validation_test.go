package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail("doctor@hospital.org"))
	assert.NoError(t, validateEmail("a.b+c@sub.domain.co"))

	for _, bad := range []string{"", "plain", "@no-local.com", "user@", "user@tld", "user@dom..com "} {
		assert.Error(t, validateEmail(bad), "email %q should fail", bad)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, validatePassword("Str0ng&Secret!!"))

	cases := map[string]string{
		"short":        "Ab1!",
		"no uppercase": "weak&secret123!!",
		"no lowercase": "WEAK&SECRET123!!",
		"no digit":     "Weak&Secret!!!!!",
		"no symbol":    "WeakSecret123456",
	}
	for name, password := range cases {
		assert.Error(t, validatePassword(password), name)
	}
}

func TestValidatePhone(t *testing.T) {
	assert.NoError(t, validatePhone(""))
	assert.NoError(t, validatePhone("+15551234567"))
	assert.NoError(t, validatePhone("4915512345678"))

	for _, bad := range []string{"0123456", "+0123456789", "123", "phone-number"} {
		assert.Error(t, validatePhone(bad), "phone %q should fail", bad)
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, validateName("Ada Lovelace"))
	assert.Error(t, validateName(""))
	assert.Error(t, validateName("A"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", normalizeEmail("  User@Example.COM "))
}
