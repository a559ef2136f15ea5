package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medchain/identity-service/internal/middleware"
	"github.com/medchain/identity-service/internal/models"
	"github.com/medchain/identity-service/internal/services"
)

// AdminHandler serves the admin decision routes. All routes sit behind
// RequireAuth + RequireRole(admin).
type AdminHandler struct {
	admin *services.AdminService
}

// NewAdminHandler creates the admin route handler.
func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Approve marks a role entity approved and verified.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Role        string `json:"role"`
		UserID      uint   `json:"user_id"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	err := h.admin.Approve(r.Context(), models.Role(body.Role), body.UserID, body.Description, actorID, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	message(w, http.StatusOK, "entity approved")
}

// Reject marks a role entity rejected with a mandatory reason.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Role        string `json:"role"`
		UserID      uint   `json:"user_id"`
		Status      string `json:"status"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	err := h.admin.Reject(r.Context(), models.Role(body.Role), body.UserID, body.Status, body.Description, actorID, requestContext(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	message(w, http.StatusOK, "entity rejected")
}

// Stats returns the approved/pending tallies per role.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// Pending lists unverified entities of a role.
func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// Approved lists verified entities of a role.
func (h *AdminHandler) Approved(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// AuditTrail lists the security events recorded for an account.
func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(chi.URLParam(r, "userID"), 10, 32)
	if err != nil || userID == 0 {
		message(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	entries, err := h.admin.AuditTrail(r.Context(), uint(userID), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries, "count": len(entries)})
}

// Profile returns the signed-in admin's decrypted record.
func (h *AdminHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	profile, err := h.admin.Profile(r.Context(), actorID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *AdminHandler) list(w http.ResponseWriter, r *http.Request, verified bool) {
	role := models.Role(chi.URLParam(r, "role"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var (
		views []services.EntityView
		err   error
	)
	if verified {
		views, err = h.admin.ListApproved(r.Context(), role, limit, offset)
	} else {
		views, err = h.admin.ListPending(r.Context(), role, limit, offset)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": views, "count": len(views)})
}

func (h *AdminHandler) actor(w http.ResponseWriter, r *http.Request) (uint, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		message(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	actorID, err := claims.UserID()
	if err != nil {
		message(w, http.StatusUnauthorized, "invalid or expired token")
		return 0, false
	}
	return actorID, true
}
