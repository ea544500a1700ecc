package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/adaldean/Perfumes/internal/payment"
	"github.com/adaldean/Perfumes/internal/repository"
	"github.com/adaldean/Perfumes/internal/service"
)

// All responses share the {success, error?} envelope; payload fields
// sit alongside success at the top level.
type envelope map[string]any

func respondJSON(w http.ResponseWriter, status int, data envelope) {
	if data == nil {
		data = envelope{}
	}
	if _, ok := data["success"]; !ok {
		data["success"] = true
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{
		"success": false,
		"error":   message,
	})
}

// respondServiceError maps the error taxonomy onto HTTP statuses:
// validation 400, not-found 404, ownership 403, signature 401,
// provider or anything unexpected 502/500.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrMissingField),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrUnknownProvider),
		errors.Is(err, payment.ErrMalformedEvent):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrUsernameTaken),
		errors.Is(err, repository.ErrEmailTaken):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrCartLineNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, payment.ErrSignatureInvalid):
		respondError(w, http.StatusUnauthorized, err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
