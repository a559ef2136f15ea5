package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationAttempts counts registration starts by outcome.
	RegistrationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_registration_attempts_total",
		Help: "Registration attempts by outcome",
	}, []string{"outcome"})

	// LoginAttempts counts logins by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_login_attempts_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	// VerificationFailures counts failed code verifications by reason.
	VerificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_verification_failures_total",
		Help: "Failed verification-code checks by reason",
	}, []string{"reason"})

	// AuditEventsDropped counts audit events lost to a full queue.
	AuditEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_audit_events_dropped_total",
		Help: "Audit events dropped because the write queue was full",
	})

	// RateLimited counts requests rejected by the rate limiter per route.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"route"})
)
