package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/session"
)

// CSRF issues and checks single-use anti-forgery tokens. A token is an HMAC
// signed id backed by a store record with a 30 minute lifetime; consuming it
// deletes the record, so replays fail even with a valid signature.
type CSRF struct {
	store *session.Store
	vault *crypto.Vault
}

// NewCSRF creates the CSRF guard.
func NewCSRF(store *session.Store, vault *crypto.Vault) *CSRF {
	return &CSRF{store: store, vault: vault}
}

// Issue mints a fresh token and records it for later consumption.
func (c *CSRF) Issue(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := c.store.CreateNamed(ctx, session.PurposeCSRF, id, session.Payload{}, session.CSRFTTL); err != nil {
		return "", err
	}
	return id + "." + c.vault.Signature(id), nil
}

// Require rejects mutating requests without a valid, unused X-CSRF-Token.
func (c *CSRF) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-CSRF-Token")
		id, sig, ok := strings.Cut(token, ".")
		if !ok || id == "" || !c.vault.VerifySignature(id, sig) {
			writeJSON(w, http.StatusForbidden, "invalid csrf token")
			return
		}
		if _, err := c.store.Consume(r.Context(), session.PurposeCSRF, id); err != nil {
			writeJSON(w, http.StatusForbidden, "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
