package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/medchain/identity-service/internal/metrics"
	"github.com/medchain/identity-service/internal/models"
	"github.com/medchain/identity-service/internal/repository"
	"github.com/rs/zerolog/log"
)

// Event kinds written by the service.
const (
	EventRegisterAttempt       = "REGISTER_ATTEMPT"
	EventCodeResent            = "VERIFICATION_CODE_RESENT"
	EventInvalidVerification   = "INVALID_VERIFICATION_ATTEMPT"
	EventRegistrationCompleted = "REGISTRATION_COMPLETED"
	EventRoleSelected          = "ROLE_SELECTED"
	EventLoginSuccess          = "LOGIN_SUCCESS"
	EventLoginFailed           = "FAILED_LOGIN"
	EventLogout                = "LOGOUT"
	EventResetRequested        = "PASSWORD_RESET_REQUESTED"
	EventResetCodeVerified     = "PASSWORD_RESET_CODE_VERIFIED"
	EventResetCompleted        = "PASSWORD_RESET_SUCCESS"
	EventMFAEnabled            = "MFA_ENABLED"
	EventMFADisabled           = "MFA_DISABLED"
	EventInvalidMFACode        = "INVALID_MFA_CODE"
	EventEntityApproved        = "ENTITY_APPROVED"
	EventEntityRejected        = "ENTITY_REJECTED"
)

// Event is one security-relevant occurrence to record.
type Event struct {
	Event     string
	Subject   string
	IP        string
	UserAgent string
	Metadata  map[string]any
}

// Logger writes audit events through a bounded queue drained by a fixed
// worker pool. A burst of events can therefore never spawn unbounded work;
// when the queue is full the event is dropped and counted, and the caller
// is never blocked or failed.
type Logger struct {
	repo    *repository.AuditRepository
	queue   chan Event
	wg      sync.WaitGroup
	closing sync.Once
}

// NewLogger starts the worker pool.
func NewLogger(repo *repository.AuditRepository, workers, queueSize int) *Logger {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	l := &Logger{
		repo:  repo,
		queue: make(chan Event, queueSize),
	}
	for i := 0; i < workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
	return l
}

// Record enqueues an event without blocking. Best-effort by contract.
func (l *Logger) Record(event Event) {
	select {
	case l.queue <- event:
	default:
		metrics.AuditEventsDropped.Inc()
		log.Warn().Str("event", event.Event).Msg("audit queue full, event dropped")
	}
}

// Trail reads back the recorded events for a subject, newest first.
func (l *Logger) Trail(ctx context.Context, subject string, limit, offset int) ([]models.AuditLog, error) {
	return l.repo.GetBySubject(ctx, subject, limit, offset)
}

// Close stops accepting events and drains the queue.
func (l *Logger) Close() {
	l.closing.Do(func() {
		close(l.queue)
	})
	l.wg.Wait()
}

func (l *Logger) worker() {
	defer l.wg.Done()
	for event := range l.queue {
		l.write(event)
	}
}

func (l *Logger) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &models.AuditLog{
		Event:     event.Event,
		Subject:   event.Subject,
		IPAddress: event.IP,
		UserAgent: event.UserAgent,
	}
	if len(event.Metadata) > 0 {
		if raw, err := json.Marshal(event.Metadata); err == nil {
			entry.Metadata = string(raw)
		}
	}

	if err := l.repo.Create(ctx, entry); err != nil {
		// swallowed: audit failures never propagate to the request
		log.Error().Err(err).Str("event", event.Event).Msg("failed to write audit log")
	}
}
