package query

import (
	"strings"

	"railmon/internal/complaint"
)

// All is the "no constraint" value for every FilterSpec field.
const All = "all"

// DateRange limits complaints by age.
type DateRange string

const (
	RangeAll        DateRange = All
	RangeLast7Days  DateRange = "7days"
	RangeLast30Days DateRange = "30days"
)

// maxDays returns the window size, or false when the range does not limit.
func (r DateRange) maxDays() (int64, bool) {
	switch r {
	case RangeLast7Days:
		return 7, true
	case RangeLast30Days:
		return 30, true
	}
	return 0, false
}

// FilterSpec is a view's current filter selection.
//
// Empty and unrecognized values behave like "all". Status accepts legacy
// spellings ("In Progress", "Resolved") as well as canonical ones.
type FilterSpec struct {
	Status         string    `json:"status" yaml:"status"`
	DateRange      DateRange `json:"dateRange" yaml:"dateRange"`
	SearchTerm     string    `json:"searchTerm" yaml:"searchTerm"`
	Classification string    `json:"classification" yaml:"classification"`
}

// DefaultFilter matches everything.
func DefaultFilter() FilterSpec {
	return FilterSpec{Status: All, DateRange: RangeAll, Classification: All}
}

// Filter returns the complaints matching every constraint in spec, in their
// original order. An empty result is a valid answer.
func (e *Engine) Filter(complaints []complaint.Complaint, spec FilterSpec) []complaint.Complaint {
	m := e.newMatcher(spec)
	out := make([]complaint.Complaint, 0, len(complaints))
	for _, c := range complaints {
		if m.match(c) {
			out = append(out, c)
		}
	}
	return out
}

type matcher struct {
	e              *Engine
	status         complaint.Status
	anyStatus      bool
	maxDays        int64
	anyDate        bool
	classification string
	term           string
}

func (e *Engine) newMatcher(spec FilterSpec) matcher {
	m := matcher{e: e, anyStatus: true, anyDate: true}

	if raw := strings.TrimSpace(spec.Status); raw != "" && raw != All {
		if s, ok := complaint.ParseStatus(raw); ok {
			m.status, m.anyStatus = s, false
		}
	}
	if days, ok := spec.DateRange.maxDays(); ok {
		m.maxDays, m.anyDate = days, false
	}
	if cl := spec.Classification; cl != "" && cl != All {
		m.classification = cl
	}
	// Whitespace is part of the term: " " only matches fields containing a space.
	m.term = strings.ToLower(spec.SearchTerm)
	return m
}

func (m matcher) match(c complaint.Complaint) bool {
	if !m.anyStatus && c.Status != m.status {
		return false
	}
	if !m.anyDate && daysSince(m.e.now(), c.CreatedAt) > m.maxDays {
		return false
	}
	if m.classification != "" && c.Classification != m.classification {
		return false
	}
	if m.term != "" && !matchesSearch(c, m.term) {
		return false
	}
	return true
}

// matchesSearch checks the searchable fields for term, which is already
// lower-cased. All-digit train numbers are compared without case folding.
func matchesSearch(c complaint.Complaint, term string) bool {
	if isDigits(c.TrainNumber) {
		if strings.Contains(c.TrainNumber, term) {
			return true
		}
	} else if strings.Contains(strings.ToLower(c.TrainNumber), term) {
		return true
	}

	for _, field := range []string{c.PNRNumber, c.SourceStation, c.DestinationStation, c.Text} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
