package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shutterbook/studio-api/internal/domain"
	"github.com/shutterbook/studio-api/internal/observability/metrics"
	"github.com/shutterbook/studio-api/internal/pkg/id"
	"github.com/shutterbook/studio-api/internal/pkg/validate"
)

const (
	minUsernameLen      = 3
	maxUsernameLen      = 32
	usernameCreateTries = 5
)

type Service interface {
	// RequestCode resolves or creates the user for email, replaces any outstanding
	// code with a fresh one and delivers it.
	RequestCode(ctx context.Context, email string) error
	// Redeem consumes a live code for email and returns the user with a session token.
	Redeem(ctx context.Context, email, code string) (*domain.User, string, error)
}

type userStore interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

type otpStore interface {
	Replace(ctx context.Context, c *domain.OneTimeCode) error
	Consume(ctx context.Context, userID int64, code string, now time.Time) (*domain.OneTimeCode, error)
	DeleteUsed(ctx context.Context, userID int64) error
	DeleteByUser(ctx context.Context, userID int64) error
}

// Notifier delivers a code out of band. A nil error means the transport accepted it.
type Notifier interface {
	SendCode(ctx context.Context, to, code string, ttl time.Duration) error
}

type codeGenerator interface {
	Next() (string, error)
}

type tokenIssuer interface {
	Issue(u *domain.User) (string, error)
}

type service struct {
	users    userStore
	codes    otpStore
	notifier Notifier
	gen      codeGenerator
	tokens   tokenIssuer
	ttl      time.Duration
	now      func() time.Time
}

type ServiceDeps struct {
	UserRepo  userStore
	OTPRepo   otpStore
	Notifier  Notifier
	Generator codeGenerator
	Tokens    tokenIssuer
	CodeTTL   time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:    deps.UserRepo,
		codes:    deps.OTPRepo,
		notifier: deps.Notifier,
		gen:      deps.Generator,
		tokens:   deps.Tokens,
		ttl:      deps.CodeTTL,
		now:      now,
	}
}

func (s *service) RequestCode(ctx context.Context, rawEmail string) error {
	email, err := validate.Email(rawEmail)
	if err != nil {
		metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}

	u, err := s.resolveUser(ctx, email)
	if err != nil {
		metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	if !u.IsActive {
		metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultDisabled).Inc()
		return domain.ErrAccountDisabled
	}

	code, err := s.gen.Next()
	if err != nil {
		metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	now := s.now()
	otp := &domain.OneTimeCode{
		ID:        id.New(),
		UserID:    u.ID,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.codes.Replace(ctx, otp); err != nil {
		metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("store one-time code: %w", err)
	}
	// A deactivation that slipped in after the check above must not keep this code.
	cur, err := s.users.Get(ctx, u.ID)
	if err != nil {
		metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("reload user: %w", err)
	}
	if !cur.IsActive {
		if err := s.codes.DeleteByUser(ctx, u.ID); err != nil {
			slog.Warn("could not drop code of deactivated user", "user_id", u.ID, "err", err)
		}
		metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultDisabled).Inc()
		return domain.ErrAccountDisabled
	}

	// The code is persisted before delivery so a failed send never leaves a
	// delivered code without a record.
	if err := s.notifier.SendCode(ctx, u.Email, code, s.ttl); err != nil {
		metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultUndelivered).Inc()
		slog.Error("one-time code delivery failed", "user_id", u.ID, "err", err)
		return fmt.Errorf("send one-time code: %w", errors.Join(domain.ErrDelivery, err))
	}
	metrics.OTPRequestsTotal.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}

func (s *service) Redeem(ctx context.Context, rawEmail, code string) (*domain.User, string, error) {
	// No account can own a malformed address.
	email, err := validate.Email(rawEmail)
	if err != nil {
		metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultNotFound).Inc()
		return nil, "", fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultNotFound).Inc()
		return nil, "", fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, "", err
	}
	if !u.IsActive {
		metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultDisabled).Inc()
		return nil, "", domain.ErrAccountDisabled
	}

	code = strings.TrimSpace(code)
	if code == "" {
		metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, "", domain.ErrInvalidCode
	}
	if _, err := s.codes.Consume(ctx, u.ID, code, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
			return nil, "", domain.ErrInvalidCode
		}
		metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, "", fmt.Errorf("consume one-time code: %w", err)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	if err := s.codes.DeleteUsed(ctx, u.ID); err != nil {
		slog.Warn("could not purge used one-time code", "user_id", u.ID, "err", err)
	}
	metrics.OTPRedemptionsTotal.WithLabelValues(metrics.ResultOK).Inc()
	return u, token, nil
}

// resolveUser returns the user owning email, creating it on first contact.
// A username taken by someone else gets a numeric suffix; an email claimed by a
// concurrent request resolves to that request's user.
func (s *service) resolveUser(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	base := usernameFromEmail(email)
	for attempt := 0; attempt < usernameCreateTries; attempt++ {
		username := base
		if attempt > 0 {
			username = withSuffix(base, rand.IntN(10000))
		}
		now := s.now()
		u = &domain.User{Username: username, Email: email, IsActive: true, CreatedAt: now, UpdatedAt: now}
		err = s.users.Create(ctx, u)
		if err == nil {
			slog.Info("user created", "user_id", u.ID, "username", u.Username)
			return u, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		if existing, gErr := s.users.GetByEmail(ctx, email); gErr == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("no free username for %q after %d attempts: %w", base, usernameCreateTries, domain.ErrConflict)
}

// usernameFromEmail keeps the lower-cased local part, limited to [a-z0-9._-].
// Parts too short for a profile username are prefixed with "user".
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) < minUsernameLen {
		name = "user" + name
	}
	if len(name) > maxUsernameLen {
		name = name[:maxUsernameLen]
	}
	return name
}

func withSuffix(base string, n int) string {
	suffix := fmt.Sprintf("%04d", n)
	if len(base)+len(suffix) > maxUsernameLen {
		base = base[:maxUsernameLen-len(suffix)]
	}
	return base + suffix
}
