package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shutterbook/studio-api/internal/domain"
)

const userColumns = `id, username, email, is_active, created_at, updated_at`

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts u and sets u.ID.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		u.Username, u.Email, u.IsActive, toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("email or username taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// Update applies the non-nil fields of upd in a single statement; a unique
// violation aborts the whole write.
func (r *UserRepo) Update(ctx context.Context, id int64, upd domain.UserUpdate, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET username = COALESCE(?, username), email = COALESCE(?, email), updated_at = ?
		 WHERE id = ?`,
		nullString(upd.Username), nullString(upd.Email), toMillis(at), id,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("email or username taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res, id)
}

func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, toMillis(at), id,
	)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return expectOne(res, id)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var (
		u                    domain.User
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.IsActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
