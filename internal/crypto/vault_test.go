package crypto

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	v, err := NewVault(key, []byte("lookup-pepper"), []byte("phone-pepper"), []byte("integrity"))
	require.NoError(t, err)
	return v
}

func TestNewVaultRejectsShortKey(t *testing.T) {
	_, err := NewVault([]byte("short"), []byte("a"), []byte("b"), []byte("c"))
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := testVault(t)

	ciphertext, err := v.Encrypt("alice@example.com")
	require.NoError(t, err)

	plaintext, err := v.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", plaintext)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	v := testVault(t)

	a, err := v.Encrypt("same input")
	require.NoError(t, err)
	b, err := v.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptEmptyInput(t *testing.T) {
	v := testVault(t)

	plaintext, err := v.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", plaintext)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	v := testVault(t)

	ciphertext, err := v.Encrypt("sensitive")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = v.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptMalformedInput(t *testing.T) {
	v := testVault(t)

	_, err := v.Decrypt("not base64!!!")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString([]byte("tiny")))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestLookupHashDeterministic(t *testing.T) {
	v := testVault(t)

	assert.Equal(t, v.LookupHash("bob@example.com"), v.LookupHash("bob@example.com"))
	assert.NotEqual(t, v.LookupHash("bob@example.com"), v.LookupHash("alice@example.com"))
}

func TestPhoneHashUsesSeparatePepper(t *testing.T) {
	v := testVault(t)

	// same input must hash differently under the two peppers
	assert.NotEqual(t, v.LookupHash("+15551234567"), v.PhoneHash("+15551234567"))
}

func TestSignatureVerify(t *testing.T) {
	v := testVault(t)

	sig := v.Signature("payload")
	assert.True(t, v.VerifySignature("payload", sig))
	assert.False(t, v.VerifySignature("payload", sig+"0"))
	assert.False(t, v.VerifySignature("other", sig))
}

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, ConstantTimeEquals("ABCD1234", "ABCD1234"))
	assert.False(t, ConstantTimeEquals("ABCD1234", "ABCD1235"))
	assert.False(t, ConstantTimeEquals("short", "longer value"))
}

func TestTOTPKnownVector(t *testing.T) {
	// RFC 6238 test secret, truncated to the 6-digit code
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

	code, err := TOTPCode(secret, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "287082", code)
}

func TestVerifyTOTPWindow(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	code, err := TOTPCode(secret, now)
	require.NoError(t, err)

	assert.True(t, VerifyTOTP(secret, code, 1, now))
	assert.True(t, VerifyTOTP(secret, code, 1, now.Add(30*time.Second)))
	assert.False(t, VerifyTOTP(secret, code, 0, now.Add(30*time.Second)))
	assert.False(t, VerifyTOTP(secret, code, 1, now.Add(2*time.Minute)))
	assert.False(t, VerifyTOTP(secret, "000000", 1, now))
}
