package domain

import "time"

// User is an identity resolved from an email address.
// Email and Username are each unique across all users.
type User struct {
	ID        int64     `json:"id" dynamodbav:"user_id"`
	Username  string    `json:"username" dynamodbav:"username"`
	Email     string    `json:"email" dynamodbav:"email"`
	IsActive  bool      `json:"isActive" dynamodbav:"is_active"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// UserUpdate carries the profile fields a user may change. Nil fields are left untouched.
type UserUpdate struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=32"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil
}
