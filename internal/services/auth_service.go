package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
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

// TokenPair is an issued access/refresh token set.
type TokenPair struct {
	Access  string
	Refresh string
}

// LoginResult is a successful credential check. When MFAToken is set the
// caller must complete the MFA challenge before tokens are issued.
type LoginResult struct {
	User     *models.User
	Tokens   TokenPair
	MFAToken string
}

// AuthService authenticates accounts, gates login on the admin approval
// state, and manages tokens, MFA and password resets.
type AuthService struct {
	users    *repository.UserRepository
	roles    *repository.RoleRepository
	revoked  *repository.TokenRepository
	vault    *crypto.Vault
	sessions *session.Store
	engine   *verification.Engine
	tokens   *token.Service
	sender   email.Sender
	audit    *audit.Logger
	issuer   string

	// injectable for tests
	sleep func(time.Duration)
	now   func() time.Time
}

// NewAuthService wires the authentication dependencies.
func NewAuthService(
	users *repository.UserRepository,
	roles *repository.RoleRepository,
	revoked *repository.TokenRepository,
	vault *crypto.Vault,
	sessions *session.Store,
	engine *verification.Engine,
	tokens *token.Service,
	sender email.Sender,
	auditLog *audit.Logger,
	issuer string,
) *AuthService {
	return &AuthService{
		users:    users,
		roles:    roles,
		revoked:  revoked,
		vault:    vault,
		sessions: sessions,
		engine:   engine,
		tokens:   tokens,
		sender:   sender,
		audit:    auditLog,
		issuer:   issuer,
		sleep:    time.Sleep,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login checks credentials first, then the verification and approval gates.
// Unknown email and wrong password return the same error after the same
// randomized delay.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string, req verification.RequestContext) (*LoginResult, error) {
	emailHash := s.vault.LookupHash(normalizeEmail(emailAddr))

	user, err := s.users.GetByEmailHash(ctx, emailHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.failLogin(ctx, 0, emailHash, req)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, s.failLogin(ctx, user.ID, emailHash, req)
	}

	if !user.AccountVerified {
		metrics.LoginAttempts.WithLabelValues("unverified").Inc()
		return nil, ErrAccountUnverified
	}

	entity, err := s.roles.GetByUserID(ctx, user.Role, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	decision := entity.DecisionState()
	status, err := s.vault.Decrypt(decision.StatusEncrypted)
	if err != nil {
		return nil, err
	}
	if status == models.StatusRejected {
		reason, _ := s.vault.Decrypt(decision.DescriptionEncrypted)
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		return nil, &AccountRejectedError{Reason: reason}
	}
	if status != models.StatusApproved || !decision.Verified {
		metrics.LoginAttempts.WithLabelValues("pending").Inc()
		return nil, ErrAccountPending
	}

	if user.MFAEnabled {
		mfaToken, err := s.startMFAChallenge(ctx, user.ID, req)
		if err != nil {
			return nil, err
		}
		return &LoginResult{User: user, MFAToken: mfaToken}, nil
	}
	return s.completeLogin(ctx, user, req, false)
}

// VerifyMFA completes a pending login challenge with a TOTP code and issues
// the token pair.
func (s *AuthService) VerifyMFA(ctx context.Context, mfaToken, code string, req verification.RequestContext) (*LoginResult, error) {
	payload, err := s.sessions.BumpAttempts(ctx, session.PurposeMFA, mfaToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if payload.IP != req.IP {
		return nil, ErrSessionInvalid
	}
	if payload.DeviceFingerprint != "" && payload.DeviceFingerprint != req.Fingerprint {
		return nil, ErrSessionInvalid
	}
	if payload.Attempts > verification.MaxAttempts {
		_ = s.sessions.Delete(ctx, session.PurposeMFA, mfaToken)
		return nil, ErrTooManyAttempts
	}

	user, err := s.userFromPayload(ctx, payload)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if user.MFASecretEncrypted == nil {
		return nil, ErrSessionInvalid
	}
	secret, err := s.vault.Decrypt(*user.MFASecretEncrypted)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyTOTP(secret, code, 1, s.now()) {
		record(s.audit, audit.Event{
			Event: audit.EventInvalidMFACode, Subject: subjectID(user.ID),
			IP: req.IP, UserAgent: req.UserAgent,
		})
		return nil, ErrCodeMismatch
	}

	if _, err := s.sessions.Consume(ctx, session.PurposeMFA, mfaToken); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	return s.completeLogin(ctx, user, req, true)
}

// Logout revokes the presented access token's id. Every later request
// carrying the same jti is rejected regardless of expiry.
func (s *AuthService) Logout(ctx context.Context, claims *token.Claims, req verification.RequestContext) error {
	if err := s.revoked.Revoke(ctx, claims.ID); err != nil {
		return err
	}
	record(s.audit, audit.Event{
		Event: audit.EventLogout, Subject: "user:" + claims.Subject,
		IP: req.IP, UserAgent: req.UserAgent,
	})
	return nil
}

// Refresh validates a refresh token and mints a fresh access token with the
// account's current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.Validate(refreshToken, token.TypeRefresh)
	if err != nil {
		return "", err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", token.ErrTokenInvalid
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", token.ErrTokenInvalid
		}
		return "", err
	}
	return s.tokens.IssueAccess(user.ID, user.Role)
}

// EnableMFA generates an authenticator secret for the account and returns
// it with its otpauth provisioning URL. The secret stays inactive until
// ConfirmMFA sees a valid code.
func (s *AuthService) EnableMFA(ctx context.Context, userID uint) (secret, otpauthURL string, err error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if user.MFAEnabled {
		return "", "", validationErrorf("mfa already enabled")
	}

	secret, err = crypto.GenerateTOTPSecret()
	if err != nil {
		return "", "", err
	}
	secretEnc, err := s.vault.Encrypt(secret)
	if err != nil {
		return "", "", err
	}
	if err := s.users.SetMFA(ctx, userID, false, &secretEnc); err != nil {
		return "", "", err
	}

	emailAddr, err := s.vault.Decrypt(user.EmailEncrypted)
	if err != nil {
		return "", "", err
	}
	otpauthURL = fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		s.issuer, emailAddr, secret, s.issuer)
	return secret, otpauthURL, nil
}

// ConfirmMFA activates MFA once the account proves it holds the secret.
func (s *AuthService) ConfirmMFA(ctx context.Context, userID uint, code string, req verification.RequestContext) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecretEncrypted == nil {
		return validationErrorf("mfa not initialized")
	}
	if err := s.checkTOTP(user, code, req); err != nil {
		return err
	}
	if err := s.users.SetMFA(ctx, userID, true, user.MFASecretEncrypted); err != nil {
		return err
	}
	record(s.audit, audit.Event{
		Event: audit.EventMFAEnabled, Subject: subjectID(userID),
		IP: req.IP, UserAgent: req.UserAgent,
	})
	return nil
}

// DisableMFA turns MFA off after a final code check and discards the secret.
func (s *AuthService) DisableMFA(ctx context.Context, userID uint, code string, req verification.RequestContext) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled || user.MFASecretEncrypted == nil {
		return validationErrorf("mfa not enabled")
	}
	if err := s.checkTOTP(user, code, req); err != nil {
		return err
	}
	if err := s.users.SetMFA(ctx, userID, false, nil); err != nil {
		return err
	}
	record(s.audit, audit.Event{
		Event: audit.EventMFADisabled, Subject: subjectID(userID),
		IP: req.IP, UserAgent: req.UserAgent,
	})
	return nil
}

// RequestPasswordReset starts the reset flow. The response is identical
// whether or not the email belongs to an account: unknown addresses get a
// decoy token that no store record backs.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string, req verification.RequestContext) (string, error) {
	if err := validateEmail(emailAddr); err != nil {
		return "", err
	}
	normalized := normalizeEmail(emailAddr)
	emailHash := s.vault.LookupHash(normalized)

	won, err := s.sessions.ClaimCooldown(ctx, "reset:"+emailHash, session.CooldownTTL)
	if err != nil {
		return "", err
	}
	if !won {
		return "", ErrTooManyAttempts
	}

	user, err := s.users.GetByEmailHash(ctx, emailHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return session.NewToken()
		}
		return "", err
	}

	code, err := s.engine.Issue(verification.DefaultCodeLength)
	if err != nil {
		return "", err
	}
	resetToken, err := s.engine.Bind(ctx, session.PurposePasswordReset, code, session.Payload{
		EmailEncrypted:    user.EmailEncrypted,
		IP:                req.IP,
		UserAgent:         truncateUA(req.UserAgent),
		DeviceFingerprint: req.Fingerprint,
		CreatedAt:         s.now(),
	}, session.RegistrationTTL)
	if err != nil {
		return "", err
	}
	if err := s.sender.SendCode(normalized, code); err != nil {
		_ = s.sessions.Delete(ctx, session.PurposePasswordReset, resetToken)
		_ = s.sessions.ClearCooldown(ctx, "reset:"+emailHash)
		return "", fmt.Errorf("failed to deliver reset code: %w", err)
	}

	record(s.audit, audit.Event{
		Event: audit.EventResetRequested, Subject: subjectID(user.ID),
		IP: req.IP, UserAgent: req.UserAgent,
	})
	return resetToken, nil
}

// VerifyResetCode checks the emailed code and exchanges it for a short
// second-stage token accepted by ResetPassword.
func (s *AuthService) VerifyResetCode(ctx context.Context, resetToken, code string, req verification.RequestContext) (string, error) {
	payload, err := s.engine.Verify(ctx, session.PurposePasswordReset, resetToken, code, req)
	if err != nil {
		return "", mapVerifyError(s.audit, err, req)
	}

	stage2, err := s.sessions.Create(ctx, session.PurposePasswordReset, session.Payload{
		EmailEncrypted: payload.EmailEncrypted,
		IP:             req.IP,
		UserAgent:      truncateUA(req.UserAgent),
		PreviousToken:  resetToken,
		CreatedAt:      s.now(),
	}, session.MFATTL)
	if err != nil {
		return "", err
	}

	record(s.audit, audit.Event{
		Event: audit.EventResetCodeVerified,
		IP:    req.IP, UserAgent: req.UserAgent,
	})
	return stage2, nil
}

// ResetPassword consumes a second-stage reset token and replaces the
// account password.
func (s *AuthService) ResetPassword(ctx context.Context, stage2Token, newPassword string, req verification.RequestContext) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	payload, err := s.sessions.Consume(ctx, session.PurposePasswordReset, stage2Token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionExpired
		}
		return err
	}
	// a first-stage token still carries its code; only the exchanged token
	// may reach this step
	if payload.Code != "" || payload.PreviousToken == "" {
		return ErrSessionInvalid
	}
	if payload.IP != req.IP {
		return ErrSessionInvalid
	}

	emailAddr, err := s.vault.Decrypt(payload.EmailEncrypted)
	if err != nil {
		return err
	}
	emailHash := s.vault.LookupHash(emailAddr)
	user, err := s.users.GetByEmailHash(ctx, emailHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionInvalid
		}
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(passwordHash)); err != nil {
		return err
	}
	_ = s.sessions.ClearCooldown(ctx, "reset:"+emailHash)

	record(s.audit, audit.Event{
		Event: audit.EventResetCompleted, Subject: subjectID(user.ID),
		IP: req.IP, UserAgent: req.UserAgent,
	})
	return nil
}

func (s *AuthService) completeLogin(ctx context.Context, user *models.User, req verification.RequestContext, viaMFA bool) (*LoginResult, error) {
	if err := s.users.RecordLogin(ctx, user.ID, req.IP, s.now()); err != nil {
		return nil, err
	}
	access, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	record(s.audit, audit.Event{
		Event: audit.EventLoginSuccess, Subject: subjectID(user.ID),
		IP: req.IP, UserAgent: req.UserAgent,
		Metadata: map[string]any{"mfa": viaMFA, "role": string(user.Role)},
	})
	return &LoginResult{User: user, Tokens: TokenPair{Access: access, Refresh: refresh}}, nil
}

func (s *AuthService) startMFAChallenge(ctx context.Context, userID uint, req verification.RequestContext) (string, error) {
	userIDEnc, err := s.vault.Encrypt(strconv.FormatUint(uint64(userID), 10))
	if err != nil {
		return "", err
	}
	return s.sessions.Create(ctx, session.PurposeMFA, session.Payload{
		UserIDEncrypted:   userIDEnc,
		IP:                req.IP,
		UserAgent:         truncateUA(req.UserAgent),
		UserAgentHash:     s.vault.LookupHash(req.UserAgent),
		DeviceFingerprint: req.Fingerprint,
		CreatedAt:         s.now(),
	}, session.MFATTL)
}

func (s *AuthService) userFromPayload(ctx context.Context, payload session.Payload) (*models.User, error) {
	rawID, err := s.vault.Decrypt(payload.UserIDEncrypted)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, uint(userID))
}

func (s *AuthService) checkTOTP(user *models.User, code string, req verification.RequestContext) error {
	secret, err := s.vault.Decrypt(*user.MFASecretEncrypted)
	if err != nil {
		return err
	}
	if !crypto.VerifyTOTP(secret, code, 1, s.now()) {
		record(s.audit, audit.Event{
			Event: audit.EventInvalidMFACode, Subject: subjectID(user.ID),
			IP: req.IP, UserAgent: req.UserAgent,
		})
		return ErrCodeMismatch
	}
	return nil
}

// failLogin counts the failure against the account if one matched, audits
// it, burns a randomized 0.5-1.5s delay and returns the indistinguishable
// credential error.
func (s *AuthService) failLogin(ctx context.Context, userID uint, subject string, req verification.RequestContext) error {
	if userID != 0 {
		_ = s.users.IncrementFailedLogins(ctx, userID)
	}
	metrics.LoginAttempts.WithLabelValues("failure").Inc()
	record(s.audit, audit.Event{
		Event: audit.EventLoginFailed, Subject: subject,
		IP: req.IP, UserAgent: req.UserAgent,
	})
	s.sleep(500*time.Millisecond + time.Duration(rand.Int63n(int64(time.Second))))
	return ErrInvalidCredentials
}
