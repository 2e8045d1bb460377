package domain

import "time"

// OneTimeCode is the single outstanding code a user may redeem.
// IsUsed moves from false to true once and never back.
type OneTimeCode struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	IsUsed    bool      `json:"is_used"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the code can still be redeemed at now.
func (c *OneTimeCode) Live(now time.Time) bool {
	return !c.IsUsed && now.Before(c.ExpiresAt)
}
