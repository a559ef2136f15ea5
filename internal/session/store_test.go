package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/medchain/identity-service/internal/cache"
	"github.com/medchain/identity-service/internal/crypto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisCacheFromClient(client)

	key := make([]byte, 32)
	vault, err := crypto.NewVault(key, []byte("pepper"), []byte("phone"), []byte("sig"))
	require.NoError(t, err)

	return NewStore(c, vault), mr
}

func TestCreateAndPeek(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, PurposeRegistration, Payload{
		Code: "ABCD1234",
		IP:   "10.0.0.1",
	}, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	payload, err := store.Peek(ctx, PurposeRegistration, token)
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", payload.Code)
	assert.Equal(t, "10.0.0.1", payload.IP)
}

func TestPayloadStoredEncrypted(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, PurposeRegistration, Payload{Code: "SECRETCODE"}, time.Minute)
	require.NoError(t, err)

	raw, err := mr.Get("reg:" + token)
	require.NoError(t, err)
	assert.NotContains(t, raw, "SECRETCODE")
}

func TestConsumeDeletes(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, PurposeRegistration, Payload{Code: "X"}, time.Minute)
	require.NoError(t, err)

	_, err = store.Consume(ctx, PurposeRegistration, token)
	require.NoError(t, err)

	_, err = store.Consume(ctx, PurposeRegistration, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeExactlyOnceUnderConcurrency(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, PurposeRegistration, Payload{Code: "X"}, time.Minute)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Consume(ctx, PurposeRegistration, token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrNotFound)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestPurposeNamespacing(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, PurposeRegistration, Payload{Code: "X"}, time.Minute)
	require.NoError(t, err)

	_, err = store.Consume(ctx, PurposePasswordReset, token)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Peek(ctx, PurposeRegistration, token)
	assert.NoError(t, err)
}

func TestExpiredTokenIsNotFound(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, PurposeRegistration, Payload{Code: "X"}, time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = store.Peek(ctx, PurposeRegistration, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBumpAttemptsPreservesTTL(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, PurposeRegistration, Payload{Code: "X"}, time.Minute)
	require.NoError(t, err)

	mr.FastForward(30 * time.Second)

	payload, err := store.BumpAttempts(ctx, PurposeRegistration, token)
	require.NoError(t, err)
	assert.Equal(t, 1, payload.Attempts)

	ttl := mr.TTL("reg:" + token)
	assert.LessOrEqual(t, ttl, 30*time.Second)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestBumpAttemptsCountsEveryConcurrentCall(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, PurposeRegistration, Payload{Code: "X"}, time.Minute)
	require.NoError(t, err)

	const workers = 12
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.BumpAttempts(ctx, PurposeRegistration, token)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	payload, err := store.Peek(ctx, PurposeRegistration, token)
	require.NoError(t, err)
	assert.Equal(t, workers, payload.Attempts)
}

func TestCooldown(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	won, err := store.ClaimCooldown(ctx, "register:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.ClaimCooldown(ctx, "register:abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	mr.FastForward(2 * time.Minute)

	won, err = store.ClaimCooldown(ctx, "register:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	require.NoError(t, store.ClearCooldown(ctx, "register:abc"))
	won, err = store.ClaimCooldown(ctx, "register:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestClaimCooldownSingleWinnerUnderConcurrency(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.ClaimCooldown(ctx, "register:abc", time.Minute)
			assert.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
