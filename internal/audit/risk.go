package audit

import "strings"

// RiskScore derives a coarse heuristic score for an event. It is recorded
// as metadata for operators to query; nothing in the request path branches
// on it.
func RiskScore(event Event) int {
	score := 0
	switch event.Event {
	case EventLoginFailed, EventInvalidVerification, EventInvalidMFACode:
		score += 30
	case EventEntityRejected:
		score += 10
	}
	if event.UserAgent == "" {
		score += 20
	}
	ua := strings.ToLower(event.UserAgent)
	for _, marker := range []string{"curl", "python", "wget", "bot"} {
		if strings.Contains(ua, marker) {
			score += 25
			break
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}
