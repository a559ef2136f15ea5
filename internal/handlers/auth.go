package handlers

import (
	"net/http"

	"github.com/medchain/identity-service/internal/middleware"
	"github.com/medchain/identity-service/internal/models"
	"github.com/medchain/identity-service/internal/services"
	"github.com/medchain/identity-service/internal/token"
	"github.com/rs/zerolog/log"
)

// AuthHandler serves the registration and authentication routes.
type AuthHandler struct {
	registration *services.RegistrationService
	auth         *services.AuthService
	tokens       *token.Service
	csrf         *middleware.CSRF
	secure       bool
}

// NewAuthHandler creates the auth route handler. secure controls the Secure
// flag on issued cookies and is only false in local development.
func NewAuthHandler(registration *services.RegistrationService, auth *services.AuthService, tokens *token.Service, csrf *middleware.CSRF, secure bool) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		auth:         auth,
		tokens:       tokens,
		csrf:         csrf,
		secure:       secure,
	}
}

// CSRFToken issues a fresh anti-forgery token.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	csrfToken, err := h.csrf.Issue(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": csrfToken})
}

// Register starts the sign-up flow and emails a verification code.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		Name      string `json:"name"`
		Telephone string `json:"telephone"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	sessionToken, err := h.registration.Register(r.Context(), services.RegisterInput{
		Email:     body.Email,
		Password:  body.Password,
		Name:      body.Name,
		Telephone: body.Telephone,
	}, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":       "verification code sent",
		"session_token": sessionToken,
	})
}

// ResendCode reissues the verification code under a fresh session token.
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionToken string `json:"session_token"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	newToken, err := h.registration.ResendCode(r.Context(), body.SessionToken, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":       "verification code sent",
		"session_token": newToken,
	})
}

// CompleteRegistration verifies the code, creates the account and signs the
// client in.
func (h *AuthHandler) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionToken string `json:"session_token"`
		Code         string `json:"code"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	user, roleToken, pair, err := h.registration.CompleteRegistration(r.Context(), body.SessionToken, body.Code, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.setAuthCookies(w, pair)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":              "registration complete",
		"user_id":              user.ID,
		"role_selection_token": roleToken,
	})
}

// SelectRole submits the role choice with its role-specific fields. The body
// is flat: session_token and role ride alongside the variant fields.
func (h *AuthHandler) SelectRole(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}

	sessionToken, _ := body["session_token"].(string)
	roleName, _ := body["role"].(string)
	delete(body, "session_token")
	delete(body, "role")

	err := h.registration.SelectRole(r.Context(), sessionToken, models.Role(roleName), body, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	message(w, http.StatusOK, "role submitted, pending approval")
}

// Login authenticates credentials and, when approved, issues the cookie
// pair. MFA-enabled accounts get a challenge token instead.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := h.auth.Login(r.Context(), body.Email, body.Password, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if result.MFAToken != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":      "mfa verification required",
			"mfa_required": true,
			"mfa_token":    result.MFAToken,
		})
		return
	}

	h.setAuthCookies(w, result.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "login successful",
		"role":    result.User.Role,
	})
}

// VerifyMFA completes an MFA login challenge.
func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MFAToken string `json:"mfa_token"`
		Code     string `json:"code"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := h.auth.VerifyMFA(r.Context(), body.MFAToken, body.Code, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.setAuthCookies(w, result.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "login successful",
		"role":    result.User.Role,
	})
}

// Refresh rotates the access token from the refresh cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.RefreshCookie)
	if err != nil || cookie.Value == "" {
		message(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	access, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.setCookie(w, middleware.AccessCookie, access, int(h.tokens.AccessTTL().Seconds()))
	message(w, http.StatusOK, "token refreshed")
}

// Logout revokes the current token and clears the cookie pair.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		message(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.auth.Logout(r.Context(), claims, requestContext(r)); err != nil {
		respondError(w, r, err)
		return
	}

	h.setCookie(w, middleware.AccessCookie, "", -1)
	h.setCookie(w, middleware.RefreshCookie, "", -1)
	message(w, http.StatusOK, "logged out")
}

// EnableMFA provisions an authenticator secret for the signed-in account.
func (h *AuthHandler) EnableMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	secret, otpauthURL, err := h.auth.EnableMFA(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "scan the secret with an authenticator app, then confirm",
		"secret":      secret,
		"otpauth_url": otpauthURL,
	})
}

// ConfirmMFA activates MFA after the first valid authenticator code.
func (h *AuthHandler) ConfirmMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.auth.ConfirmMFA(r.Context(), userID, body.Code, requestContext(r)); err != nil {
		respondError(w, r, err)
		return
	}
	message(w, http.StatusOK, "mfa enabled")
}

// DisableMFA turns MFA off for the signed-in account.
func (h *AuthHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.auth.DisableMFA(r.Context(), userID, body.Code, requestContext(r)); err != nil {
		respondError(w, r, err)
		return
	}
	message(w, http.StatusOK, "mfa disabled")
}

// RequestPasswordReset starts the reset flow. The response shape does not
// reveal whether the address has an account.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	resetToken, err := h.auth.RequestPasswordReset(r.Context(), body.Email, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "if the address is registered, a reset code has been sent",
		"reset_token": resetToken,
	})
}

// VerifyResetCode exchanges the emailed code for a reset authorization.
func (h *AuthHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResetToken string `json:"reset_token"`
		Code       string `json:"code"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	stage2, err := h.auth.VerifyResetCode(r.Context(), body.ResetToken, body.Code, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "code verified",
		"reset_token": stage2,
	})
}

// ResetPassword sets the new password with a verified reset authorization.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResetToken  string `json:"reset_token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.auth.ResetPassword(r.Context(), body.ResetToken, body.NewPassword, requestContext(r)); err != nil {
		respondError(w, r, err)
		return
	}
	message(w, http.StatusOK, "password updated")
}

func (h *AuthHandler) userID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		message(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	userID, err := claims.UserID()
	if err != nil {
		log.Error().Err(err).Msg("bad subject claim")
		message(w, http.StatusUnauthorized, "invalid or expired token")
		return 0, false
	}
	return userID, true
}

func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, pair services.TokenPair) {
	h.setCookie(w, middleware.AccessCookie, pair.Access, int(h.tokens.AccessTTL().Seconds()))
	h.setCookie(w, middleware.RefreshCookie, pair.Refresh, int(h.tokens.RefreshTTL().Seconds()))
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
