package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shutterbook/studio-api/internal/application/user"
	"github.com/shutterbook/studio-api/internal/config"
	"github.com/shutterbook/studio-api/internal/domain"
	jwtinfra "github.com/shutterbook/studio-api/internal/infrastructure/jwt"
	"github.com/shutterbook/studio-api/internal/pkg/otpcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inbox records the last code delivered to each address.
type inbox struct {
	mu   sync.Mutex
	last map[string]string
}

func (b *inbox) SendCode(_ context.Context, to, code string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last[to] = code
	return nil
}

func (b *inbox) code(to string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[to]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	store  *memStore
	mail   *inbox
	clock  *clock
	tokens *jwtinfra.Provider
	auth   Service
	users  user.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newMemStore(),
		mail:  &inbox{last: map[string]string{}},
		clock: &clock{t: fixedNow},
	}
	var err error
	h.tokens, err = jwtinfra.NewProvider(&config.Config{JWTSecret: "test-secret", JWTIssuer: "studio-api", JWTExpiry: time.Hour})
	require.NoError(t, err)
	h.auth = NewService(ServiceDeps{
		UserRepo:  h.store,
		OTPRepo:   h.store,
		Notifier:  h.mail,
		Generator: otpcode.NewGenerator(6),
		Tokens:    h.tokens,
		CodeTTL:   testTTL,
		Now:       h.clock.Now,
	})
	h.users = user.NewService(user.ServiceDeps{UserRepo: h.store, OTPRepo: h.store, Now: h.clock.Now})
	return h
}

func TestFlow_NewUserSignsIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.auth.RequestCode(ctx, "newuser@example.com"))

	u, err := h.store.GetByEmail(ctx, "newuser@example.com")
	require.NoError(t, err)
	assert.Equal(t, "newuser", u.Username)
	assert.True(t, u.IsActive)
	rec, ok := h.store.code(u.ID)
	require.True(t, ok)
	assert.False(t, rec.IsUsed)
	assert.WithinDuration(t, fixedNow.Add(testTTL), rec.ExpiresAt, time.Second)

	code := h.mail.code("newuser@example.com")
	require.Len(t, code, 6)

	got, token, err := h.auth.Redeem(ctx, "newuser@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, "newuser@example.com", got.Email)
	assert.NotEmpty(t, token)
	claims, err := h.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, _, err = h.auth.Redeem(ctx, "newuser@example.com", code)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestFlow_SecondRequestInvalidatesFirstCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.auth.RequestCode(ctx, "a@example.com"))
	first := h.mail.code("a@example.com")
	for h.mail.code("a@example.com") == first {
		// codes are random; re-request until the second differs
		require.NoError(t, h.auth.RequestCode(ctx, "a@example.com"))
	}
	second := h.mail.code("a@example.com")

	_, _, err := h.auth.Redeem(ctx, "a@example.com", first)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	_, _, err = h.auth.Redeem(ctx, "a@example.com", second)
	assert.NoError(t, err)
}

func TestFlow_ExpiredCodeFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.auth.RequestCode(ctx, "a@example.com"))
	code := h.mail.code("a@example.com")
	h.clock.Advance(testTTL + time.Second)

	_, _, err := h.auth.Redeem(ctx, "a@example.com", code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestFlow_DeactivationKillsPendingCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.auth.RequestCode(ctx, "a@example.com"))
	code := h.mail.code("a@example.com")
	u, err := h.store.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)

	require.NoError(t, h.users.Deactivate(ctx, u.ID))

	_, ok := h.store.code(u.ID)
	assert.False(t, ok)
	_, _, err = h.auth.Redeem(ctx, "a@example.com", code)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, h.auth.RequestCode(ctx, "a@example.com"), domain.ErrForbidden)
}

func TestFlow_ProfileConflictLeavesRecordUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.auth.RequestCode(ctx, "alice@example.com"))
	require.NoError(t, h.auth.RequestCode(ctx, "bob@example.com"))
	bob, err := h.store.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)

	newName := "bobby"
	taken := "alice@example.com"
	_, err = h.users.UpdateProfile(ctx, bob.ID, domain.UserUpdate{Username: &newName, Email: &taken})
	assert.ErrorIs(t, err, domain.ErrConflict)

	after, err := h.store.Get(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, after)
}

func TestFlow_ConcurrentRedeemHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.auth.RequestCode(ctx, "a@example.com"))
	code := h.mail.code("a@example.com")

	const n = 32
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, _, errs[i] = h.auth.Redeem(ctx, "a@example.com", code)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, domain.ErrInvalidCode, err)
	}
	assert.Equal(t, 1, wins)
}
