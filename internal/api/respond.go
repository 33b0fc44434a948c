package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tonerolima/kobopay/internal/domain"
	"github.com/tonerolima/kobopay/internal/store"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// errorStatus maps domain errors onto HTTP status codes. Anything
// unmapped is a 500, which keeps store and transport failures from
// leaking internals to the caller.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidDetails),
		errors.Is(err, domain.ErrDuplicateReference),
		errors.Is(err, domain.ErrTransactionFinal),
		errors.Is(err, domain.ErrTokenReused),
		errors.Is(err, store.ErrEmailTaken):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrTokenMismatch),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionInactive):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrUserInactive),
		errors.Is(err, domain.ErrInvalidPin),
		errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondWithDomainError translates err and writes it. 500s hide the
// underlying message.
func respondWithDomainError(w http.ResponseWriter, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}
