package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/medchain/identity-service/internal/audit"
	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/email"
	"github.com/medchain/identity-service/internal/metrics"
	"github.com/medchain/identity-service/internal/models"
	"github.com/medchain/identity-service/internal/repository"
	"github.com/medchain/identity-service/internal/session"
	"github.com/medchain/identity-service/internal/token"
	"github.com/medchain/identity-service/internal/verification"
	"golang.org/x/crypto/bcrypt"
)

// RegistrationService drives the account sign-up flow: register, email
// verification, account creation and role selection.
type RegistrationService struct {
	users    *repository.UserRepository
	roles    *repository.RoleRepository
	vault    *crypto.Vault
	sessions *session.Store
	engine   *verification.Engine
	tokens   *token.Service
	sender   email.Sender
	audit    *audit.Logger
}

// NewRegistrationService wires the registration flow dependencies.
func NewRegistrationService(
	users *repository.UserRepository,
	roles *repository.RoleRepository,
	vault *crypto.Vault,
	sessions *session.Store,
	engine *verification.Engine,
	tokens *token.Service,
	sender email.Sender,
	auditLog *audit.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:    users,
		roles:    roles,
		vault:    vault,
		sessions: sessions,
		engine:   engine,
		tokens:   tokens,
		sender:   sender,
		audit:    auditLog,
	}
}

// RegisterInput is the initial sign-up submission.
type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	Telephone string
}

// Register validates the submission, binds a verification code to a fresh
// session carrying the encrypted registration data, and emails the code.
// Returns the session token the client presents to complete registration.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput, req verification.RequestContext) (string, error) {
	if err := validateEmail(in.Email); err != nil {
		return "", err
	}
	if err := validatePassword(in.Password); err != nil {
		return "", err
	}
	if err := validateName(in.Name); err != nil {
		return "", err
	}
	if err := validatePhone(in.Telephone); err != nil {
		return "", err
	}

	emailAddr := normalizeEmail(in.Email)
	emailHash := s.vault.LookupHash(emailAddr)

	// claim before any work: of N concurrent submissions for one email
	// exactly one proceeds, the rest are rate limited here
	won, err := s.sessions.ClaimCooldown(ctx, "register:"+emailHash, session.CooldownTTL)
	if err != nil {
		return "", err
	}
	if !won {
		metrics.RegistrationAttempts.WithLabelValues("cooldown").Inc()
		return "", ErrTooManyAttempts
	}

	if taken, err := s.users.ExistsByEmailHash(ctx, emailHash); err != nil {
		return "", err
	} else if taken {
		metrics.RegistrationAttempts.WithLabelValues("conflict").Inc()
		return "", ErrConflict
	}
	if in.Telephone != "" {
		if taken, err := s.users.ExistsByTelephoneHash(ctx, s.vault.PhoneHash(in.Telephone)); err != nil {
			return "", err
		} else if taken {
			metrics.RegistrationAttempts.WithLabelValues("conflict").Inc()
			return "", ErrConflict
		}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	emailEnc, err := s.vault.Encrypt(emailAddr)
	if err != nil {
		return "", err
	}
	nameEnc, err := s.vault.Encrypt(in.Name)
	if err != nil {
		return "", err
	}
	var phoneEnc *string
	if in.Telephone != "" {
		enc, err := s.vault.Encrypt(in.Telephone)
		if err != nil {
			return "", err
		}
		phoneEnc = &enc
	}

	code, err := s.engine.Issue(verification.DefaultCodeLength)
	if err != nil {
		return "", err
	}
	payload := session.Payload{
		EmailEncrypted:     emailEnc,
		NameEncrypted:      nameEnc,
		PasswordHash:       string(passwordHash),
		TelephoneEncrypted: phoneEnc,
		IP:                 req.IP,
		UserAgent:          truncateUA(req.UserAgent),
		UserAgentHash:      s.vault.LookupHash(req.UserAgent),
		DeviceFingerprint:  req.Fingerprint,
		CreatedAt:          time.Now().UTC(),
	}
	sessionToken, err := s.engine.Bind(ctx, session.PurposeRegistration, code, payload, session.RegistrationTTL)
	if err != nil {
		return "", err
	}

	// synchronous delivery: a failed send rolls back the pending session
	// and releases the claimed window so the client may retry at once
	if err := s.sender.SendCode(emailAddr, code); err != nil {
		_ = s.sessions.Delete(ctx, session.PurposeRegistration, sessionToken)
		_ = s.sessions.ClearCooldown(ctx, "register:"+emailHash)
		metrics.RegistrationAttempts.WithLabelValues("email_failed").Inc()
		return "", fmt.Errorf("failed to deliver verification code: %w", err)
	}

	metrics.RegistrationAttempts.WithLabelValues("started").Inc()
	record(s.audit, audit.Event{
		Event:     audit.EventRegisterAttempt,
		Subject:   emailHash,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	return sessionToken, nil
}

// ResendCode invalidates the pending code and delivers a fresh one bound to
// a new session token carrying the same registration payload.
func (s *RegistrationService) ResendCode(ctx context.Context, sessionToken string, req verification.RequestContext) (string, error) {
	payload, err := s.sessions.Peek(ctx, session.PurposeRegistration, sessionToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrSessionExpired
		}
		return "", err
	}
	if payload.IP != req.IP {
		return "", ErrSessionInvalid
	}

	newToken, code, err := s.engine.Reissue(ctx, session.PurposeRegistration, sessionToken, payload, session.RegistrationTTL)
	if err != nil {
		return "", err
	}

	emailAddr, err := s.vault.Decrypt(payload.EmailEncrypted)
	if err != nil {
		return "", err
	}
	if err := s.sender.SendCode(emailAddr, code); err != nil {
		_ = s.sessions.Delete(ctx, session.PurposeRegistration, newToken)
		return "", fmt.Errorf("failed to deliver verification code: %w", err)
	}

	record(s.audit, audit.Event{
		Event:     audit.EventCodeResent,
		Subject:   s.vault.LookupHash(emailAddr),
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Metadata:  map[string]any{"previous_token_bound": true},
	})
	return newToken, nil
}

// CompleteRegistration verifies the emailed code, creates the durable
// account and returns it together with a role-selection session token and
// an access/refresh token pair.
func (s *RegistrationService) CompleteRegistration(ctx context.Context, sessionToken, code string, req verification.RequestContext) (*models.User, string, TokenPair, error) {
	payload, err := s.engine.Verify(ctx, session.PurposeRegistration, sessionToken, code, req)
	if err != nil {
		return nil, "", TokenPair{}, mapVerifyError(s.audit, err, req)
	}

	emailAddr, err := s.vault.Decrypt(payload.EmailEncrypted)
	if err != nil {
		return nil, "", TokenPair{}, err
	}
	emailHash := s.vault.LookupHash(emailAddr)

	user := &models.User{
		EmailEncrypted:     payload.EmailEncrypted,
		EmailHash:          emailHash,
		Password:           payload.PasswordHash,
		NameEncrypted:      payload.NameEncrypted,
		AccountVerified:    true,
		LastPasswordChange: time.Now().UTC(),
	}
	if payload.TelephoneEncrypted != nil {
		phone, err := s.vault.Decrypt(*payload.TelephoneEncrypted)
		if err != nil {
			return nil, "", TokenPair{}, err
		}
		phoneHash := s.vault.PhoneHash(phone)
		user.TelephoneEncrypted = payload.TelephoneEncrypted
		user.TelephoneHash = &phoneHash
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RegistrationAttempts.WithLabelValues("conflict").Inc()
			return nil, "", TokenPair{}, ErrConflict
		}
		return nil, "", TokenPair{}, err
	}
	_ = s.sessions.ClearCooldown(ctx, "register:"+emailHash)

	userIDEnc, err := s.vault.Encrypt(strconv.FormatUint(uint64(user.ID), 10))
	if err != nil {
		return nil, "", TokenPair{}, err
	}
	roleToken, err := s.sessions.Create(ctx, session.PurposeRoleSelection, session.Payload{
		UserIDEncrypted: userIDEnc,
		IP:              req.IP,
		UserAgent:       truncateUA(req.UserAgent),
		CreatedAt:       time.Now().UTC(),
	}, session.RegistrationTTL)
	if err != nil {
		return nil, "", TokenPair{}, err
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, "", TokenPair{}, err
	}

	metrics.RegistrationAttempts.WithLabelValues("completed").Inc()
	record(s.audit, audit.Event{
		Event:     audit.EventRegistrationCompleted,
		Subject:   subjectID(user.ID),
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	return user, roleToken, pair, nil
}

// SelectRole validates the role submission, consumes the role-selection
// session and commits the role assignment plus entity row atomically. The
// entity starts unverified with a pending status.
func (s *RegistrationService) SelectRole(ctx context.Context, sessionToken string, role models.Role, fields map[string]any, req verification.RequestContext) error {
	if !role.Valid() {
		return validationErrorf("unknown role")
	}
	if err := models.ValidateRoleFields(role, fields); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	payload, err := s.sessions.Consume(ctx, session.PurposeRoleSelection, sessionToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionExpired
		}
		return err
	}
	if payload.IP != req.IP {
		return ErrSessionInvalid
	}

	rawID, err := s.vault.Decrypt(payload.UserIDEncrypted)
	if err != nil {
		return ErrSessionInvalid
	}
	userID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return ErrSessionInvalid
	}

	entity, err := s.buildEntity(role, uint(userID), fields)
	if err != nil {
		return err
	}
	if err := s.roles.AssignRole(ctx, uint(userID), role, entity); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConflict
		}
		return err
	}

	record(s.audit, audit.Event{
		Event:     audit.EventRoleSelected,
		Subject:   subjectID(uint(userID)),
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Metadata:  map[string]any{"role": string(role)},
	})
	return nil
}

func (s *RegistrationService) issuePair(user *models.User) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func subjectID(id uint) string {
	return "user:" + strconv.FormatUint(uint64(id), 10)
}

func truncateUA(ua string) string {
	if len(ua) > 200 {
		return ua[:200]
	}
	return ua
}
