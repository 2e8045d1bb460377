package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shutterbook/studio-api/internal/domain"
)

// httpError maps a service error to its status code. Messages of client errors
// are returned without the sentinel suffix; anything unclassified is logged and
// hidden behind a 500.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, publicMessage(err, domain.ErrBadRequest))
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, publicMessage(err, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, publicMessage(err, domain.ErrForbidden))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, publicMessage(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, publicMessage(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrDelivery):
		writeError(w, http.StatusBadGateway, "could not deliver the code, try again")
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func publicMessage(err, sentinel error) string {
	return strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
}
