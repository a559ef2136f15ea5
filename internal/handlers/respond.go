package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/medchain/identity-service/internal/repository"
	"github.com/medchain/identity-service/internal/services"
	"github.com/medchain/identity-service/internal/session"
	"github.com/medchain/identity-service/internal/token"
	"github.com/medchain/identity-service/internal/verification"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func message(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// respondError maps service sentinels onto the client contract. Anything
// unmapped is logged in full and returned as a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *services.ValidationError
	var rejectedErr *services.AccountRejectedError

	switch {
	case errors.As(err, &validationErr):
		message(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, services.ErrCodeMismatch):
		message(w, http.StatusBadRequest, "invalid verification code")
	case errors.Is(err, services.ErrInvalidCredentials):
		message(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, services.ErrSessionExpired):
		message(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, token.ErrTokenExpired), errors.Is(err, token.ErrTokenInvalid):
		message(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, services.ErrSessionInvalid):
		message(w, http.StatusForbidden, "session validation failed")
	case errors.Is(err, services.ErrAccountUnverified):
		message(w, http.StatusForbidden, "account email not verified")
	case errors.Is(err, services.ErrAccountPending):
		message(w, http.StatusForbidden, "account pending approval")
	case errors.As(err, &rejectedErr):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"message": "account rejected",
			"reason":  rejectedErr.Reason,
		})
	case errors.Is(err, services.ErrEntityNotFound), errors.Is(err, repository.ErrNotFound):
		message(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrConflict):
		message(w, http.StatusConflict, "already registered")
	case errors.Is(err, services.ErrTooManyAttempts):
		message(w, http.StatusTooManyRequests, "too many attempts")
	case errors.Is(err, session.ErrUnavailable):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("session store unavailable")
		message(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		message(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// requestContext captures the binding context verification decisions use.
func requestContext(r *http.Request) verification.RequestContext {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return verification.RequestContext{
		IP:          ip,
		UserAgent:   r.UserAgent(),
		Fingerprint: r.Header.Get("X-Device-Fingerprint"),
	}
}
