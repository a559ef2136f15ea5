package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medchain/identity-service/internal/cache"
	"github.com/medchain/identity-service/internal/crypto"
)

// Purpose namespaces session tokens. A token issued for one purpose can
// never be presented for another.
type Purpose string

const (
	PurposeRegistration  Purpose = "reg"
	PurposeRoleSelection Purpose = "role"
	PurposePasswordReset Purpose = "reset"
	PurposeMFA           Purpose = "mfa"
	PurposeCSRF          Purpose = "csrf"
)

// TTLs per purpose.
const (
	RegistrationTTL = 15 * time.Minute
	MFATTL          = 5 * time.Minute
	CSRFTTL         = 30 * time.Minute
	CooldownTTL     = 5 * time.Minute
)

var (
	// ErrNotFound covers absent, expired and already-consumed tokens alike,
	// so callers cannot distinguish the cases.
	ErrNotFound = errors.New("session not found")

	// ErrUnavailable signals a backend outage; callers surface a retryable
	// error and never silently proceed.
	ErrUnavailable = errors.New("session store unavailable")
)

// Payload is the encrypted-at-rest session record. PII fields hold vault
// ciphertext, never plaintext; the binding context (IP, user agent prefix,
// device fingerprint) stays cleartext for comparison.
type Payload struct {
	Code               string  `json:"code,omitempty"`
	EmailEncrypted     string  `json:"email,omitempty"`
	NameEncrypted      string  `json:"name,omitempty"`
	PasswordHash       string  `json:"password,omitempty"`
	TelephoneEncrypted *string `json:"telephone,omitempty"`
	UserIDEncrypted    string  `json:"user_id,omitempty"`

	IP                string    `json:"ip"`
	UserAgent         string    `json:"user_agent"`
	UserAgentHash     string    `json:"user_agent_hash,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Attempts          int       `json:"attempts"`
	PreviousToken     string    `json:"previous_token,omitempty"`
}

// Store keeps ephemeral session records in a TTL cache, encrypting the whole
// serialized payload before it leaves the process.
type Store struct {
	cache cache.Cache
	vault *crypto.Vault
}

// NewStore creates a session store over the given cache backend.
func NewStore(c cache.Cache, vault *crypto.Vault) *Store {
	return &Store{cache: c, vault: vault}
}

// Create serializes, encrypts and writes the payload under a fresh random
// token with the given TTL, and returns the token.
func (s *Store) Create(ctx context.Context, purpose Purpose, payload Payload, ttl time.Duration) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := s.write(ctx, purpose, token, payload, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// CreateNamed writes the payload under a caller-chosen token. Used where the
// token identity is minted elsewhere, such as CSRF ids.
func (s *Store) CreateNamed(ctx context.Context, purpose Purpose, token string, payload Payload, ttl time.Duration) (string, error) {
	if err := s.write(ctx, purpose, token, payload, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Consume atomically reads and deletes the record. Two concurrent calls with
// the same token yield exactly one payload and one ErrNotFound.
func (s *Store) Consume(ctx context.Context, purpose Purpose, token string) (Payload, error) {
	raw, err := s.cache.GetDel(ctx, key(purpose, token))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return Payload{}, ErrNotFound
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.decode(raw)
}

// Peek reads the record without consuming it.
func (s *Store) Peek(ctx context.Context, purpose Purpose, token string) (Payload, error) {
	raw, err := s.cache.Get(ctx, key(purpose, token))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return Payload{}, ErrNotFound
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.decode(raw)
}

// BumpAttempts increments the record's attempt counter without extending its
// lifetime, and returns the updated payload. The increment is an atomic
// read-modify-write: concurrent bumps on the same token never lose counts.
func (s *Store) BumpAttempts(ctx context.Context, purpose Purpose, token string) (Payload, error) {
	var bumped Payload
	err := s.cache.Swap(ctx, key(purpose, token), func(old []byte) ([]byte, error) {
		payload, err := s.decode(old)
		if err != nil {
			return nil, err
		}
		payload.Attempts++
		sealed, err := s.seal(payload)
		if err != nil {
			return nil, err
		}
		bumped = payload
		return []byte(sealed), nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return Payload{}, ErrNotFound
		}
		return Payload{}, err
	}
	return bumped, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, purpose Purpose, token string) error {
	if err := s.cache.Delete(ctx, key(purpose, token)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ClaimCooldown atomically opens the named cool-down window and reports
// whether this caller opened it. While the window is open every further
// claim loses, so of N concurrent claims exactly one wins.
func (s *Store) ClaimCooldown(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	won, err := s.cache.SetNX(ctx, "cooldown:"+name, []byte("1"), ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return won, nil
}

// ClearCooldown closes a cool-down window early.
func (s *Store) ClearCooldown(ctx context.Context, name string) error {
	if err := s.cache.Delete(ctx, "cooldown:"+name); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, purpose Purpose, token string, payload Payload, ttl time.Duration) error {
	sealed, err := s.seal(payload)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key(purpose, token), []byte(sealed), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) seal(payload Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize session: %w", err)
	}
	sealed, err := s.vault.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to seal session: %w", err)
	}
	return sealed, nil
}

func (s *Store) decode(raw []byte) (Payload, error) {
	plaintext, err := s.vault.Decrypt(string(raw))
	if err != nil {
		return Payload{}, fmt.Errorf("failed to open session: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		return Payload{}, fmt.Errorf("failed to parse session: %w", err)
	}
	return payload, nil
}

// NewToken returns a fresh 256-bit hex token.
func NewToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func key(purpose Purpose, token string) string {
	return string(purpose) + ":" + token
}
