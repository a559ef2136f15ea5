package services

import (
	"context"
	"testing"
	"time"

	"github.com/medchain/identity-service/internal/cache"
	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/session"
	"github.com/medchain/identity-service/internal/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessions(t *testing.T) (*session.Store, *crypto.Vault) {
	t.Helper()
	key := make([]byte, 32)
	vault, err := crypto.NewVault(key, []byte("pepper"), []byte("phone"), []byte("sig"))
	require.NoError(t, err)
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return session.NewStore(c, vault), vault
}

// Register claims the cool-down window before touching the account store or
// hashing anything, so a submission inside an open window is rejected
// without any other dependency being consulted.
func TestRegisterRateLimitedInsideCooldownWindow(t *testing.T) {
	store, vault := testSessions(t)
	svc := &RegistrationService{vault: vault, sessions: store}
	ctx := context.Background()

	in := RegisterInput{
		Email:    "jane@example.com",
		Password: "Str0ng&Secret!!",
		Name:     "Jane Doe",
	}
	hash := vault.LookupHash(normalizeEmail(in.Email))

	won, err := store.ClaimCooldown(ctx, "register:"+hash, time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	_, err = svc.Register(ctx, in, verification.RequestContext{IP: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}
