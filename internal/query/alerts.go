package query

import (
	"strings"

	"railmon/internal/complaint"
)

// CriticalScore is the sentiment score above which an alert is Critical.
const CriticalScore = 0.99

// Alert is a complaint flagged for urgent attention.
type Alert struct {
	Complaint complaint.Complaint `json:"complaint" yaml:"complaint"`
	Priority  complaint.Priority  `json:"priority" yaml:"priority"`
}

// DeriveEmergencyAlerts selects complaints whose classification contains one
// of keywords (case-insensitive) or whose sentiment score is above
// threshold. Input order is kept. limit <= 0 returns every match.
//
// This is a heuristic; it makes no promise of completeness.
func (e *Engine) DeriveEmergencyAlerts(complaints []complaint.Complaint, keywords []string, threshold float64, limit int) []Alert {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}

	alerts := []Alert{}
	for _, c := range complaints {
		if limit > 0 && len(alerts) >= limit {
			break
		}
		score, scored := c.Score()
		if !(scored && score > threshold) && !containsAny(c.Classification, lowered) {
			continue
		}
		alerts = append(alerts, Alert{Complaint: c, Priority: PriorityFor(c)})
	}
	return alerts
}

// PriorityFor tags a flagged complaint.
func PriorityFor(c complaint.Complaint) complaint.Priority {
	if score, ok := c.Score(); ok && score > CriticalScore {
		return complaint.PriorityCritical
	}
	return complaint.PriorityHigh
}

func containsAny(classification string, lowered []string) bool {
	if classification == "" {
		return false
	}
	cl := strings.ToLower(classification)
	for _, kw := range lowered {
		if strings.Contains(cl, kw) {
			return true
		}
	}
	return false
}
