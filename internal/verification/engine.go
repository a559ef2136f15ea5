package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/session"
)

// DefaultCodeLength is the number of characters in an emailed code.
const DefaultCodeLength = 8

// MaxAttempts is the verification attempt ceiling per session.
const MaxAttempts = 3

// codeAlphabet keeps codes human-transcribable: digits and uppercase only.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	// ErrMismatch means the supplied code does not match the bound code.
	ErrMismatch = errors.New("verification code mismatch")

	// ErrExpired means the session is absent, expired or already consumed.
	ErrExpired = errors.New("verification session expired")

	// ErrTooManyAttempts means the attempt ceiling was crossed and the
	// session has been destroyed.
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// ErrContextMismatch means the request context does not match the one
	// the code was bound to. Treated as a hijack signal, fails closed.
	ErrContextMismatch = errors.New("verification context mismatch")
)

// RequestContext is the caller-side binding data compared on every verify.
// Fingerprint is the optional client-supplied device fingerprint header.
type RequestContext struct {
	IP          string
	UserAgent   string
	Fingerprint string
}

// Engine issues high-entropy verification codes, binds them to a request
// context through the session store and enforces the attempt ceiling.
type Engine struct {
	store *session.Store
}

// NewEngine creates a verification engine over the session store.
func NewEngine(store *session.Store) *Engine {
	return &Engine{store: store}
}

// Issue generates a cryptographically random alphanumeric uppercase code.
// Bytes past the largest multiple of the alphabet size are discarded so
// every character is equally likely.
func (e *Engine) Issue(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	const limit = 256 - 256%len(codeAlphabet)
	code := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(code) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate verification code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == length {
				break
			}
		}
	}
	return string(code), nil
}

// Bind stores the code together with its payload and binding context under a
// fresh session token.
func (e *Engine) Bind(ctx context.Context, purpose session.Purpose, code string, payload session.Payload, ttl time.Duration) (string, error) {
	payload.Code = code
	payload.Attempts = 0
	return e.store.Create(ctx, purpose, payload, ttl)
}

// Verify checks a supplied code against the bound session. The attempt
// counter increments on every call; once it exceeds MaxAttempts the session
// is destroyed and even a correct code is rejected. On success the session
// is consumed exactly once and its payload returned.
func (e *Engine) Verify(ctx context.Context, purpose session.Purpose, token, supplied string, req RequestContext) (session.Payload, error) {
	payload, err := e.store.BumpAttempts(ctx, purpose, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.Payload{}, ErrExpired
		}
		return session.Payload{}, err
	}

	// a bound value must come back on every verify; omitting the header is
	// a mismatch, not a bypass
	if payload.IP != req.IP {
		return session.Payload{}, ErrContextMismatch
	}
	if payload.UserAgent != "" && payload.UserAgent != truncate(req.UserAgent, 200) {
		return session.Payload{}, ErrContextMismatch
	}
	if payload.DeviceFingerprint != "" && payload.DeviceFingerprint != req.Fingerprint {
		return session.Payload{}, ErrContextMismatch
	}

	if payload.Attempts > MaxAttempts {
		_ = e.store.Delete(ctx, purpose, token)
		return session.Payload{}, ErrTooManyAttempts
	}

	if !crypto.ConstantTimeEquals(payload.Code, supplied) {
		return session.Payload{}, ErrMismatch
	}

	// single use: the consume is the atomic claim on the token
	consumed, err := e.store.Consume(ctx, purpose, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.Payload{}, ErrExpired
		}
		return session.Payload{}, err
	}
	return consumed, nil
}

// Reissue invalidates the old token and binds a fresh code to the same
// payload under a new token, keeping a back-reference for audit continuity.
func (e *Engine) Reissue(ctx context.Context, purpose session.Purpose, oldToken string, payload session.Payload, ttl time.Duration) (token, code string, err error) {
	code, err = e.Issue(DefaultCodeLength)
	if err != nil {
		return "", "", err
	}
	payload.PreviousToken = oldToken
	payload.CreatedAt = time.Now().UTC()
	token, err = e.Bind(ctx, purpose, code, payload, ttl)
	if err != nil {
		return "", "", err
	}
	if err := e.store.Delete(ctx, purpose, oldToken); err != nil {
		return "", "", err
	}
	return token, code, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
