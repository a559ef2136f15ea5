package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrEncryptionFailed is returned when the cipher operation fails
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned on tamper, key mismatch or malformed
	// input. Callers must not treat it as "value is empty".
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Vault provides reversible field encryption and keyed lookup hashes for
// PII stored at rest. Encryption is AES-256-GCM with a random nonce per
// call; lookup hashes are deterministic HMAC-SHA256 digests usable only
// for equality search.
type Vault struct {
	aead            cipher.AEAD
	lookupPepper    []byte
	phonePepper     []byte
	integritySecret []byte
}

// NewVault builds a vault from a 32-byte AES key and the hash peppers.
func NewVault(key, lookupPepper, phonePepper, integritySecret []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}
	return &Vault{
		aead:            aead,
		lookupPepper:    lookupPepper,
		phonePepper:     phonePepper,
		integritySecret: integritySecret,
	}, nil
}

// Encrypt seals plaintext and returns a base64 string of nonce||ciphertext.
// Non-deterministic: two calls with the same input produce different output.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Empty input decrypts to
// the empty string without error, matching absent optional columns.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed input", ErrDecryptionFailed)
	}
	if len(raw) < v.aead.NonceSize() {
		return "", fmt.Errorf("%w: input too short", ErrDecryptionFailed)
	}
	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// LookupHash returns the deterministic hex digest used to index encrypted
// email columns.
func (v *Vault) LookupHash(value string) string {
	return hmacHex(v.lookupPepper, value)
}

// PhoneHash returns the deterministic hex digest for phone columns. Phones
// use a separate pepper so a leak of one keyspace does not expose the other.
func (v *Vault) PhoneHash(value string) string {
	return hmacHex(v.phonePepper, value)
}

// Signature computes an integrity HMAC over arbitrary data.
func (v *Vault) Signature(data string) string {
	return hmacHex(v.integritySecret, data)
}

// VerifySignature checks an integrity HMAC in constant time.
func (v *Vault) VerifySignature(data, signature string) bool {
	return ConstantTimeEquals(v.Signature(data), signature)
}

// ConstantTimeEquals compares two strings without leaking a timing signal.
// Use for every secret or code comparison.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func hmacHex(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
