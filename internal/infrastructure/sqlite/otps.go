package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shutterbook/studio-api/internal/domain"
)

const otpColumns = `id, user_id, code, expires_at, is_used, created_at`

// OTPRepo keeps at most one row per user; user_id is UNIQUE.
type OTPRepo struct {
	db *sql.DB
}

func NewOTPRepo(db *sql.DB) *OTPRepo {
	return &OTPRepo{db: db}
}

// Replace upserts c over whatever code the user held.
func (r *OTPRepo) Replace(ctx context.Context, c *domain.OneTimeCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO one_time_codes (`+otpColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   id = excluded.id, code = excluded.code, expires_at = excluded.expires_at,
		   is_used = excluded.is_used, created_at = excluded.created_at`,
		c.ID, c.UserID, c.Code, toMillis(c.ExpiresAt), c.IsUsed, toMillis(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert one-time code: %w", err)
	}
	return nil
}

func (r *OTPRepo) GetByUser(ctx context.Context, userID int64) (*domain.OneTimeCode, error) {
	return scanCode(r.db.QueryRowContext(ctx,
		`SELECT `+otpColumns+` FROM one_time_codes WHERE user_id = ?`, userID))
}

// Consume flips is_used on a live matching row in one statement.
func (r *OTPRepo) Consume(ctx context.Context, userID int64, code string, now time.Time) (*domain.OneTimeCode, error) {
	return scanCode(r.db.QueryRowContext(ctx,
		`UPDATE one_time_codes SET is_used = 1
		 WHERE user_id = ? AND code = ? AND is_used = 0 AND expires_at > ?
		 RETURNING `+otpColumns,
		userID, code, toMillis(now)))
}

func (r *OTPRepo) DeleteUsed(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE user_id = ? AND is_used = 1`, userID)
	return err
}

func (r *OTPRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE user_id = ?`, userID)
	return err
}

func (r *OTPRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return res.RowsAffected()
}

func scanCode(row *sql.Row) (*domain.OneTimeCode, error) {
	var (
		c                    domain.OneTimeCode
		expiresAt, createdAt int64
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Code, &expiresAt, &c.IsUsed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("one-time code: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.ExpiresAt = fromMillis(expiresAt)
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}
