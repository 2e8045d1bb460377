package handler

import (
	"net/http"

	"github.com/shutterbook/studio-api/internal/application/auth"
)

// codeSentMessage never varies, so the response reveals nothing about the account.
const codeSentMessage = "if the address can sign in, a code is on its way"

// OTPHandler handles the passwordless sign-in endpoints.
type OTPHandler struct {
	svc auth.Service
}

func NewOTPHandler(svc auth.Service) *OTPHandler { return &OTPHandler{svc: svc} }

type requestCodeBody struct {
	Email string `json:"email"`
}

type verifyCodeBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *OTPHandler) Request(w http.ResponseWriter, r *http.Request) {
	var body requestCodeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.svc.RequestCode(r.Context(), body.Email); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: codeSentMessage})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body verifyCodeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	u, token, err := h.svc.Redeem(r.Context(), body.Email, body.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SignInEnvelope{User: toPublicUser(u), Token: token})
}
