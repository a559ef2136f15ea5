package services

import (
	"errors"

	"github.com/medchain/identity-service/internal/audit"
	"github.com/medchain/identity-service/internal/metrics"
	"github.com/medchain/identity-service/internal/verification"
)

// record attaches the risk score and enqueues the event. Nil loggers are
// tolerated so service tests need no audit wiring.
func record(a *audit.Logger, ev audit.Event) {
	if a == nil {
		return
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	ev.Metadata["risk_score"] = audit.RiskScore(ev)
	a.Record(ev)
}

// mapVerifyError translates verification engine failures into the generic
// client-facing sentinels, counting and auditing each class.
func mapVerifyError(a *audit.Logger, err error, req verification.RequestContext) error {
	switch {
	case errors.Is(err, verification.ErrExpired):
		metrics.VerificationFailures.WithLabelValues("expired").Inc()
		return ErrSessionExpired
	case errors.Is(err, verification.ErrContextMismatch):
		metrics.VerificationFailures.WithLabelValues("context").Inc()
		record(a, audit.Event{Event: audit.EventInvalidVerification, IP: req.IP, UserAgent: req.UserAgent,
			Metadata: map[string]any{"reason": "context_mismatch"}})
		return ErrSessionInvalid
	case errors.Is(err, verification.ErrTooManyAttempts):
		metrics.VerificationFailures.WithLabelValues("ceiling").Inc()
		record(a, audit.Event{Event: audit.EventInvalidVerification, IP: req.IP, UserAgent: req.UserAgent,
			Metadata: map[string]any{"reason": "too_many_attempts"}})
		return ErrTooManyAttempts
	case errors.Is(err, verification.ErrMismatch):
		metrics.VerificationFailures.WithLabelValues("mismatch").Inc()
		record(a, audit.Event{Event: audit.EventInvalidVerification, IP: req.IP, UserAgent: req.UserAgent,
			Metadata: map[string]any{"reason": "code_mismatch"}})
		return ErrCodeMismatch
	default:
		return err
	}
}
