package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shutterbook/studio-api/internal/domain"
	"github.com/shutterbook/studio-api/internal/pkg/validate"
)

type Service interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
	// UpdateProfile changes username and/or email. Either value owned by another
	// user fails with ErrConflict and nothing is written.
	UpdateProfile(ctx context.Context, userID int64, upd domain.UserUpdate) (*domain.User, error)
	// Deactivate disables the account and drops any outstanding one-time code.
	Deactivate(ctx context.Context, userID int64) error
}

type userStore interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, id int64, upd domain.UserUpdate, at time.Time) error
	SetActive(ctx context.Context, id int64, active bool, at time.Time) error
}

type otpStore interface {
	DeleteByUser(ctx context.Context, userID int64) error
}

type service struct {
	repo    userStore
	otpRepo otpStore
	now     func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
	OTPRepo  otpStore
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.UserRepo, otpRepo: deps.OTPRepo, now: now}
}

func (s *service) Get(ctx context.Context, userID int64) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) UpdateProfile(ctx context.Context, userID int64, upd domain.UserUpdate) (*domain.User, error) {
	upd, err := normalize(upd)
	if err != nil {
		return nil, err
	}

	cur, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cur.IsActive {
		return nil, domain.ErrAccountDisabled
	}
	if upd.Empty() {
		return cur, nil
	}

	if upd.Email != nil && *upd.Email != cur.Email {
		if err := s.ensureFree(ctx, userID, "email", s.repo.GetByEmail, *upd.Email); err != nil {
			return nil, err
		}
	}
	if upd.Username != nil && *upd.Username != cur.Username {
		if err := s.ensureFree(ctx, userID, "username", s.repo.GetByUsername, *upd.Username); err != nil {
			return nil, err
		}
	}

	// The store enforces uniqueness again, so a racing writer still gets ErrConflict.
	if err := s.repo.Update(ctx, userID, upd, s.now()); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) Deactivate(ctx context.Context, userID int64) error {
	if err := s.repo.SetActive(ctx, userID, false, s.now()); err != nil {
		return err
	}
	if err := s.otpRepo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("drop one-time codes: %w", err)
	}
	slog.Info("user deactivated", "user_id", userID)
	return nil
}

func (s *service) ensureFree(
	ctx context.Context,
	userID int64,
	field string,
	lookup func(context.Context, string) (*domain.User, error),
	value string,
) error {
	other, err := lookup(ctx, value)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != userID:
		return fmt.Errorf("%s already in use: %w", field, domain.ErrConflict)
	}
	return nil
}

// normalize trims both fields and lower-cases the email the same way sign-in does.
func normalize(upd domain.UserUpdate) (domain.UserUpdate, error) {
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		upd.Username = &name
	}
	if upd.Email != nil {
		email, err := validate.Email(*upd.Email)
		if err != nil {
			return upd, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
		}
		upd.Email = &email
	}
	if err := validate.Struct(upd); err != nil {
		return upd, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	return upd, nil
}
