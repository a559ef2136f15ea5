package services

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/medchain/identity-service/internal/audit"
	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/models"
	"github.com/medchain/identity-service/internal/repository"
	"github.com/medchain/identity-service/internal/verification"
	"github.com/rs/zerolog/log"
)

// AdminService carries the admin decision surface: approving and rejecting
// role entities, dashboard tallies and decrypted entity listings.
type AdminService struct {
	users *repository.UserRepository
	roles *repository.RoleRepository
	vault *crypto.Vault
	audit *audit.Logger
}

// NewAdminService wires the admin surface dependencies.
func NewAdminService(users *repository.UserRepository, roles *repository.RoleRepository, vault *crypto.Vault, auditLog *audit.Logger) *AdminService {
	return &AdminService{users: users, roles: roles, vault: vault, audit: auditLog}
}

// Approve marks a role entity verified with an approved status. Re-approving
// an already approved entity leaves it unchanged.
func (s *AdminService) Approve(ctx context.Context, role models.Role, userID uint, description string, actorID uint, req verification.RequestContext) error {
	if !role.Valid() {
		return validationErrorf("unknown role")
	}
	statusEnc, err := s.vault.Encrypt(models.StatusApproved)
	if err != nil {
		return err
	}
	descEnc := ""
	if description != "" {
		if descEnc, err = s.vault.Encrypt(description); err != nil {
			return err
		}
	}
	if err := s.roles.Decide(ctx, role, userID, true, statusEnc, descEnc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntityNotFound
		}
		return err
	}

	record(s.audit, audit.Event{
		Event: audit.EventEntityApproved, Subject: subjectID(actorID),
		IP: req.IP, UserAgent: req.UserAgent,
		Metadata: map[string]any{"role": string(role), "target": userID},
	})
	return nil
}

// Reject marks a role entity unverified with a rejection status. The
// description is mandatory so the account sees why it was turned down.
func (s *AdminService) Reject(ctx context.Context, role models.Role, userID uint, status, description string, actorID uint, req verification.RequestContext) error {
	if !role.Valid() {
		return validationErrorf("unknown role")
	}
	if strings.TrimSpace(description) == "" {
		return validationErrorf("rejection description is required")
	}
	if status == "" {
		status = models.StatusRejected
	}
	statusEnc, err := s.vault.Encrypt(status)
	if err != nil {
		return err
	}
	descEnc, err := s.vault.Encrypt(description)
	if err != nil {
		return err
	}
	if err := s.roles.Decide(ctx, role, userID, false, statusEnc, descEnc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntityNotFound
		}
		return err
	}

	record(s.audit, audit.Event{
		Event: audit.EventEntityRejected, Subject: subjectID(actorID),
		IP: req.IP, UserAgent: req.UserAgent,
		Metadata: map[string]any{"role": string(role), "target": userID, "status": status},
	})
	return nil
}

// RoleCounts is one dashboard row.
type RoleCounts struct {
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
}

// Stats tallies approved and pending entities per role for the admin
// dashboard.
func (s *AdminService) Stats(ctx context.Context) (map[string]RoleCounts, error) {
	out := make(map[string]RoleCounts, len(models.Roles))
	for _, role := range models.Roles {
		approved, err := s.roles.CountByVerified(ctx, role, true)
		if err != nil {
			return nil, err
		}
		pending, err := s.list(ctx, role, false, 0, 0)
		if err != nil {
			return nil, err
		}
		out[string(role)] = RoleCounts{Approved: approved, Pending: int64(len(pending))}
	}
	return out, nil
}

// AuditTrail returns the security events recorded for an account, newest
// first.
func (s *AdminService) AuditTrail(ctx context.Context, userID uint, limit, offset int) ([]models.AuditLog, error) {
	return s.audit.Trail(ctx, subjectID(userID), limit, offset)
}

// EntityView is a decrypted role entity projection for admin review.
type EntityView struct {
	UserID         uint              `json:"user_id"`
	Role           models.Role       `json:"role"`
	SubmissionDate time.Time         `json:"submission_date"`
	Verified       bool              `json:"verified"`
	Status         string            `json:"status"`
	Description    string            `json:"description,omitempty"`
	Fields         map[string]string `json:"fields"`
}

// ListPending returns unverified entities of a role, decrypted for review,
// oldest submission first.
func (s *AdminService) ListPending(ctx context.Context, role models.Role, limit, offset int) ([]EntityView, error) {
	return s.list(ctx, role, false, limit, offset)
}

// ListApproved returns verified entities of a role, decrypted, oldest first.
func (s *AdminService) ListApproved(ctx context.Context, role models.Role, limit, offset int) ([]EntityView, error) {
	return s.list(ctx, role, true, limit, offset)
}

func (s *AdminService) list(ctx context.Context, role models.Role, verified bool, limit, offset int) ([]EntityView, error) {
	if !role.Valid() {
		return nil, validationErrorf("unknown role")
	}
	entities, err := s.roles.ListByVerified(ctx, role, verified, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]EntityView, 0, len(entities))
	for _, entity := range entities {
		views = append(views, s.view(entity))
	}
	if !verified {
		views = awaitingReview(views)
	}
	return views, nil
}

// awaitingReview drops rejected entities from an unverified listing.
// Rejection clears the verified flag, so rejected and pending rows share
// verified=false and only the decrypted status tells them apart.
func awaitingReview(views []EntityView) []EntityView {
	out := views[:0]
	for _, v := range views {
		if v.Status == models.StatusRejected {
			continue
		}
		out = append(out, v)
	}
	return out
}

// AdminProfile is the authenticated admin's own decrypted record.
type AdminProfile struct {
	UserID        uint              `json:"user_id"`
	Email         string            `json:"email"`
	Name          string            `json:"name"`
	Role          models.Role       `json:"role"`
	MFAEnabled    bool              `json:"mfa_enabled"`
	SecurityLevel string            `json:"security_level"`
	Fields        map[string]string `json:"fields"`
}

// Profile loads and decrypts the admin account and its entity record.
func (s *AdminService) Profile(ctx context.Context, userID uint) (*AdminProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	entity, err := s.roles.GetByUserID(ctx, models.RoleAdmin, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}

	emailAddr, err := s.vault.Decrypt(user.EmailEncrypted)
	if err != nil {
		return nil, err
	}
	name, err := s.vault.Decrypt(user.NameEncrypted)
	if err != nil {
		return nil, err
	}

	view := s.view(entity)
	return &AdminProfile{
		UserID:        user.ID,
		Email:         emailAddr,
		Name:          name,
		Role:          user.Role,
		MFAEnabled:    user.MFAEnabled,
		SecurityLevel: view.Fields["security_level"],
		Fields:        view.Fields,
	}, nil
}

// view decrypts every *Encrypted column of an entity into a flat field map.
// Columns that fail to decrypt are skipped and logged, never defaulted to a
// fake value.
func (s *AdminService) view(entity models.RoleEntity) EntityView {
	decision := entity.DecisionState()
	out := EntityView{
		UserID:   entity.AccountID(),
		Role:     entity.EntityRole(),
		Verified: decision.Verified,
		Fields:   map[string]string{},
	}

	status, err := s.vault.Decrypt(decision.StatusEncrypted)
	if err == nil {
		out.Status = status
	}
	if desc, err := s.vault.Decrypt(decision.DescriptionEncrypted); err == nil {
		out.Description = desc
	}

	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		switch {
		case field.Name == "SubmissionDate":
			out.SubmissionDate = v.Field(i).Interface().(time.Time)
		case field.Name == "HospitalID" || field.Name == "PharmacyID":
			if id, ok := v.Field(i).Interface().(*uint); ok && id != nil {
				out.Fields[snakeCase(field.Name)] = strconv.FormatUint(uint64(*id), 10)
			}
		case strings.HasSuffix(field.Name, "Encrypted") && field.Type.Kind() == reflect.String:
			ciphertext := v.Field(i).String()
			if ciphertext == "" {
				continue
			}
			plaintext, err := s.vault.Decrypt(ciphertext)
			if err != nil {
				log.Warn().Str("field", field.Name).Uint("user_id", out.UserID).
					Msg("failed to decrypt entity field")
				continue
			}
			out.Fields[snakeCase(strings.TrimSuffix(field.Name, "Encrypted"))] = plaintext
		}
	}
	return out
}

// snakeCase converts an exported Go field name to its column-style form,
// keeping initialisms intact (AdminID -> admin_id).
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
