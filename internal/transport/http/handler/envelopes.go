package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shutterbook/studio-api/internal/domain"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PublicUser is the profile shape returned to clients.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"isActive"`
}

// UserEnvelope wraps profile responses.
type UserEnvelope struct {
	User *PublicUser `json:"user"`
}

// SignInEnvelope wraps a successful code redemption.
type SignInEnvelope struct {
	User  *PublicUser `json:"user"`
	Token string      `json:"token"`
}

func toPublicUser(u *domain.User) *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, IsActive: u.IsActive}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
