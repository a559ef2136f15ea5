package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskScore(t *testing.T) {
	browser := "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0"

	cases := map[string]struct {
		event Event
		want  int
	}{
		"benign login": {
			Event{Event: EventLoginSuccess, UserAgent: browser}, 0,
		},
		"failed login": {
			Event{Event: EventLoginFailed, UserAgent: browser}, 30,
		},
		"rejection": {
			Event{Event: EventEntityRejected, UserAgent: browser}, 10,
		},
		"missing user agent": {
			Event{Event: EventLoginSuccess}, 20,
		},
		"scripted client": {
			Event{Event: EventLoginSuccess, UserAgent: "curl/8.5.0"}, 25,
		},
		"failed login from script with no single marker double counted": {
			Event{Event: EventInvalidMFACode, UserAgent: "python-requests wget"}, 55,
		},
		"everything stacked": {
			Event{Event: EventLoginFailed, UserAgent: ""}, 50,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, RiskScore(tc.event))
		})
	}
}
