package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shutterbook/studio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var ada = &domain.User{ID: 3, Username: "ada", Email: "ada@example.com", IsActive: true}

func TestProfileGet_MissingClaims(t *testing.T) {
	svc := &mockUserSvc{}
	rr := httptest.NewRecorder()
	NewProfileHandler(svc).Get(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProfileGet_UsesTokenIdentity(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("Get", mock.Anything, int64(3)).Return(ada, nil)
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Get), rr, bearerReq(t, p, http.MethodGet, "/v1/auth/profile", ada, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp UserEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ada", resp.User.Username)
	svc.AssertExpectations(t)
}

func TestProfileGet_UserMissing(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("Get", mock.Anything, int64(3)).Return(nil, fmt.Errorf("user 3: %w", domain.ErrNotFound))
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Get), rr, bearerReq(t, p, http.MethodGet, "/v1/auth/profile", ada, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProfileUpdate_PassesPartialUpdate(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	updated := &domain.User{ID: 3, Username: "lovelace", Email: "ada@example.com", IsActive: true}
	svc.On("UpdateProfile", mock.Anything, int64(3), domain.UserUpdate{Username: strPtr("lovelace")}).Return(updated, nil)
	h := NewProfileHandler(svc)

	r := bearerReq(t, p, http.MethodPut, "/v1/auth/profile", ada, []byte(`{"username":"lovelace"}`))
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Update), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp UserEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "lovelace", resp.User.Username)
	svc.AssertExpectations(t)
}

func TestProfileUpdate_Conflict(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("UpdateProfile", mock.Anything, int64(3), mock.Anything).
		Return(nil, fmt.Errorf("email already taken: %w", domain.ErrConflict))
	h := NewProfileHandler(svc)

	r := bearerReq(t, p, http.MethodPut, "/v1/auth/profile", ada, []byte(`{"email":"grace@example.com"}`))
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Update), rr, r)

	assert.Equal(t, http.StatusConflict, rr.Code)
	var resp MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "email already taken", resp.Error)
}

func TestProfileUpdate_InvalidBody(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	h := NewProfileHandler(svc)

	r := bearerReq(t, p, http.MethodPut, "/v1/auth/profile", ada, []byte(`{"username":`))
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Update), rr, r)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeactivate_HappyPath(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("Deactivate", mock.Anything, int64(3)).Return(nil)
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Deactivate), rr, bearerReq(t, p, http.MethodPost, "/v1/auth/deactivate", ada, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestDeactivate_UnknownUser(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockUserSvc{}
	svc.On("Deactivate", mock.Anything, int64(3)).Return(fmt.Errorf("user 3: %w", domain.ErrNotFound))
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Deactivate), rr, bearerReq(t, p, http.MethodPost, "/v1/auth/deactivate", ada, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
