package http

import (
	"context"
	"time"

	"github.com/shutterbook/studio-api/internal/domain"
	jwtinfra "github.com/shutterbook/studio-api/internal/infrastructure/jwt"
)

// UserRepository is the identity store the router requires. The dynamo, postgres
// and sqlite packages all satisfy it.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, id int64, upd domain.UserUpdate, at time.Time) error
	SetActive(ctx context.Context, id int64, active bool, at time.Time) error
}

// OTPRepository is the one-time code store the router requires.
type OTPRepository interface {
	Replace(ctx context.Context, c *domain.OneTimeCode) error
	Consume(ctx context.Context, userID int64, code string, now time.Time) (*domain.OneTimeCode, error)
	DeleteUsed(ctx context.Context, userID int64) error
	DeleteByUser(ctx context.Context, userID int64) error
}

// TokenProvider mints and checks session tokens.
type TokenProvider interface {
	Issue(u *domain.User) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
}
