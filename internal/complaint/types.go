// Package complaint provides the complaint record and the rules around it.
package complaint

import (
	"strings"
	"time"
)

// Status is the canonical complaint status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "inProgress"
	StatusResolved   Status = "resolved"
)

// Statuses lists the canonical statuses in workflow order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved}

// legacyStatuses maps every spelling seen from older backend builds and
// UI variants onto the canonical value.
var legacyStatuses = map[string]Status{
	"pending":               StatusPending,
	"Pending":               StatusPending,
	"complaintsNotProcesed": StatusPending,
	"inProgress":            StatusInProgress,
	"In Progress":           StatusInProgress,
	"in_progress":           StatusInProgress,
	"complaintsProcesed":    StatusInProgress,
	"resolved":              StatusResolved,
	"Resolved":              StatusResolved,
	"complaintsClosed":      StatusResolved,
}

// ParseStatus maps raw onto a canonical status.
//
// Unknown values come back trimmed but otherwise verbatim with ok=false, so
// callers can keep them on the record without them counting as any status.
func ParseStatus(raw string) (Status, bool) {
	trimmed := strings.TrimSpace(raw)
	if s, ok := legacyStatuses[trimmed]; ok {
		return s, true
	}
	return Status(trimmed), false
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Label is the human readable form used in tables and Telegram messages.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	}
	if s == "" {
		return "Unknown"
	}
	return string(s)
}

// Priority tags an emergency alert.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
)

// Complaint is a single filed grievance, already sanitized at the API boundary.
//
// SentimentScore is nil when the backend has not scored the complaint yet or
// sent a value outside [0,1].
type Complaint struct {
	ID                 string    `json:"id" yaml:"id"`
	TrainNumber        string    `json:"trainNumber" yaml:"trainNumber"`
	PNRNumber          string    `json:"pnrNumber" yaml:"pnrNumber"`
	CoachNumber        string    `json:"coachNumber" yaml:"coachNumber"`
	SeatNumber         string    `json:"seatNumber" yaml:"seatNumber"`
	SourceStation      string    `json:"sourceStation" yaml:"sourceStation"`
	DestinationStation string    `json:"destinationStation" yaml:"destinationStation"`
	Text               string    `json:"complaint" yaml:"complaint"`
	Classification     string    `json:"classification,omitempty" yaml:"classification,omitempty"`
	Sentiment          string    `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`
	SentimentScore     *float64  `json:"sentimentScore,omitempty" yaml:"sentimentScore,omitempty"`
	Status             Status    `json:"status" yaml:"status"`
	CreatedAt          time.Time `json:"createdAt" yaml:"createdAt"`
	Resolution         string    `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	AssignedTo         string    `json:"assignedTo,omitempty" yaml:"assignedTo,omitempty"`
}

// Score returns the sentiment score and whether one is present.
func (c Complaint) Score() (float64, bool) {
	if c.SentimentScore == nil {
		return 0, false
	}
	return *c.SentimentScore, true
}

// Route renders "source → destination".
func (c Complaint) Route() string {
	return c.SourceStation + " → " + c.DestinationStation
}

// Float64 returns a pointer to v, for building complaints in code and tests.
func Float64(v float64) *float64 {
	return &v
}
