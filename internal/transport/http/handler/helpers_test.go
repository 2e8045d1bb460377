package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shutterbook/studio-api/internal/config"
	"github.com/shutterbook/studio-api/internal/domain"
	jwtinfra "github.com/shutterbook/studio-api/internal/infrastructure/jwt"
	"github.com/shutterbook/studio-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestCode(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) Redeem(ctx context.Context, email, code string) (*domain.User, string, error) {
	args := m.Called(ctx, email, code)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.String(1), args.Error(2)
	}
	return nil, "", args.Error(2)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Get(ctx context.Context, userID int64) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) UpdateProfile(ctx context.Context, userID int64, upd domain.UserUpdate) (*domain.User, error) {
	args := m.Called(ctx, userID, upd)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Deactivate(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

// --- helpers ---

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	p, err := jwtinfra.NewProvider(&config.Config{
		JWTSecret: "handler-test-secret",
		JWTIssuer: "studio-api",
		JWTExpiry: 24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

// bearerReq builds a request carrying a signed token for u.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target string, u *domain.User, body []byte) *http.Request {
	t.Helper()
	token, err := p.Issue(u)
	require.NoError(t, err)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}

func strPtr(s string) *string { return &s }
