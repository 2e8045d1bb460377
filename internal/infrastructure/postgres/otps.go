package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shutterbook/studio-api/internal/domain"
)

const otpColumns = `id, user_id, code, expires_at, is_used, created_at`

type OTPRepo struct {
	db *pgxpool.Pool
}

func NewOTPRepo(db *pgxpool.Pool) *OTPRepo {
	return &OTPRepo{db: db}
}

// Replace upserts c; the UNIQUE(user_id) constraint keeps one row per user.
func (r *OTPRepo) Replace(ctx context.Context, c *domain.OneTimeCode) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO one_time_codes (`+otpColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   id = EXCLUDED.id, code = EXCLUDED.code, expires_at = EXCLUDED.expires_at,
		   is_used = EXCLUDED.is_used, created_at = EXCLUDED.created_at`,
		c.ID, c.UserID, c.Code, c.ExpiresAt, c.IsUsed, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert one-time code: %w", err)
	}
	return nil
}

func (r *OTPRepo) GetByUser(ctx context.Context, userID int64) (*domain.OneTimeCode, error) {
	return scanCode(r.db.QueryRow(ctx,
		`SELECT `+otpColumns+` FROM one_time_codes WHERE user_id = $1`, userID))
}

// Consume is a single conditional UPDATE; under READ COMMITTED a concurrent
// loser re-evaluates the WHERE clause after the winner commits and matches nothing.
func (r *OTPRepo) Consume(ctx context.Context, userID int64, code string, now time.Time) (*domain.OneTimeCode, error) {
	return scanCode(r.db.QueryRow(ctx,
		`UPDATE one_time_codes SET is_used = TRUE
		 WHERE user_id = $1 AND code = $2 AND is_used = FALSE AND expires_at > $3
		 RETURNING `+otpColumns,
		userID, code, now))
}

func (r *OTPRepo) DeleteUsed(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM one_time_codes WHERE user_id = $1 AND is_used = TRUE`, userID)
	return err
}

func (r *OTPRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM one_time_codes WHERE user_id = $1`, userID)
	return err
}

func (r *OTPRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM one_time_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCode(row pgx.Row) (*domain.OneTimeCode, error) {
	var c domain.OneTimeCode
	err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.IsUsed, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("one-time code: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
