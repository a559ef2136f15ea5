package verification

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/medchain/identity-service/internal/cache"
	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) (*Engine, *session.Store) {
	t.Helper()
	key := make([]byte, 32)
	vault, err := crypto.NewVault(key, []byte("pepper"), []byte("phone"), []byte("sig"))
	require.NoError(t, err)
	store := session.NewStore(cache.NewMemoryCache(), vault)
	return NewEngine(store), store
}

func TestIssueFormat(t *testing.T) {
	engine, _ := testEngine(t)

	pattern := regexp.MustCompile(`^[0-9A-Z]{8}$`)
	for i := 0; i < 50; i++ {
		code, err := engine.Issue(DefaultCodeLength)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestIssueAlphabetIsUniform(t *testing.T) {
	engine, _ := testEngine(t)

	const codes = 22500
	counts := make(map[byte]int, len(codeAlphabet))
	for i := 0; i < codes; i++ {
		code, err := engine.Issue(DefaultCodeLength)
		require.NoError(t, err)
		for j := 0; j < len(code); j++ {
			counts[code[j]]++
		}
	}

	// 180k samples over 36 characters: 5000 expected each, a 10% band is
	// over seven standard deviations wide
	for i := 0; i < len(codeAlphabet); i++ {
		c := counts[codeAlphabet[i]]
		assert.InDelta(t, 5000, c, 500, "character %c drawn %d times", codeAlphabet[i], c)
	}
}

func TestVerifySuccessConsumesSession(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()
	req := RequestContext{IP: "10.0.0.1", UserAgent: "test-agent"}

	code, err := engine.Issue(DefaultCodeLength)
	require.NoError(t, err)
	token, err := engine.Bind(ctx, session.PurposeRegistration, code, session.Payload{
		IP:        req.IP,
		UserAgent: req.UserAgent,
	}, time.Minute)
	require.NoError(t, err)

	payload, err := engine.Verify(ctx, session.PurposeRegistration, token, code, req)
	require.NoError(t, err)
	assert.Equal(t, code, payload.Code)

	// single use
	_, err = engine.Verify(ctx, session.PurposeRegistration, token, code, req)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyMismatch(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()
	req := RequestContext{IP: "10.0.0.1"}

	token, err := engine.Bind(ctx, session.PurposeRegistration, "AAAA1111", session.Payload{IP: req.IP}, time.Minute)
	require.NoError(t, err)

	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "BBBB2222", req)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestVerifyIPMismatchFailsClosed(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	token, err := engine.Bind(ctx, session.PurposeRegistration, "AAAA1111", session.Payload{IP: "10.0.0.1"}, time.Minute)
	require.NoError(t, err)

	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "AAAA1111", RequestContext{IP: "10.9.9.9"})
	assert.ErrorIs(t, err, ErrContextMismatch)
}

func TestVerifyUserAgentMismatchFailsClosed(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	token, err := engine.Bind(ctx, session.PurposeRegistration, "AAAA1111", session.Payload{
		IP:        "10.0.0.1",
		UserAgent: "agent-one",
	}, time.Minute)
	require.NoError(t, err)

	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "AAAA1111",
		RequestContext{IP: "10.0.0.1", UserAgent: "agent-two"})
	assert.ErrorIs(t, err, ErrContextMismatch)
}

func TestVerifyFingerprintMismatchFailsClosed(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	token, err := engine.Bind(ctx, session.PurposeRegistration, "AAAA1111", session.Payload{
		IP:                "10.0.0.1",
		DeviceFingerprint: "fp-original",
	}, time.Minute)
	require.NoError(t, err)

	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "AAAA1111",
		RequestContext{IP: "10.0.0.1", Fingerprint: "fp-other"})
	assert.ErrorIs(t, err, ErrContextMismatch)
}

func TestVerifyOmittedBindingHeadersFailClosed(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	token, err := engine.Bind(ctx, session.PurposeRegistration, "AAAA1111", session.Payload{
		IP:                "10.0.0.1",
		UserAgent:         "agent-one",
		DeviceFingerprint: "fp-original",
	}, time.Minute)
	require.NoError(t, err)

	// bound user agent, none supplied
	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "AAAA1111",
		RequestContext{IP: "10.0.0.1", Fingerprint: "fp-original"})
	assert.ErrorIs(t, err, ErrContextMismatch)

	// bound fingerprint, none supplied
	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "AAAA1111",
		RequestContext{IP: "10.0.0.1", UserAgent: "agent-one"})
	assert.ErrorIs(t, err, ErrContextMismatch)

	// full context still verifies
	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "AAAA1111",
		RequestContext{IP: "10.0.0.1", UserAgent: "agent-one", Fingerprint: "fp-original"})
	assert.NoError(t, err)
}

func TestAttemptCeiling(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()
	req := RequestContext{IP: "10.0.0.1"}

	token, err := engine.Bind(ctx, session.PurposeRegistration, "AAAA1111", session.Payload{IP: req.IP}, time.Minute)
	require.NoError(t, err)

	for i := 0; i < MaxAttempts; i++ {
		_, err = engine.Verify(ctx, session.PurposeRegistration, token, "WRONG000", req)
		assert.ErrorIs(t, err, ErrMismatch)
	}

	// fourth call fails even with the correct code, and the session is gone
	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "AAAA1111", req)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, err = engine.Verify(ctx, session.PurposeRegistration, token, "AAAA1111", req)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestReissueInvalidatesOldToken(t *testing.T) {
	engine, store := testEngine(t)
	ctx := context.Background()
	req := RequestContext{IP: "10.0.0.1"}

	oldToken, err := engine.Bind(ctx, session.PurposeRegistration, "AAAA1111", session.Payload{
		IP:             req.IP,
		EmailEncrypted: "ciphertext",
	}, time.Minute)
	require.NoError(t, err)

	payload, err := store.Peek(ctx, session.PurposeRegistration, oldToken)
	require.NoError(t, err)

	newToken, newCode, err := engine.Reissue(ctx, session.PurposeRegistration, oldToken, payload, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, newToken)
	assert.NotEqual(t, "AAAA1111", newCode)

	_, err = engine.Verify(ctx, session.PurposeRegistration, oldToken, "AAAA1111", req)
	assert.ErrorIs(t, err, ErrExpired)

	got, err := engine.Verify(ctx, session.PurposeRegistration, newToken, newCode, req)
	require.NoError(t, err)
	assert.Equal(t, "ciphertext", got.EmailEncrypted)
	assert.Equal(t, oldToken, got.PreviousToken)
}
