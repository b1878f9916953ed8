package query

import (
	"sort"

	"railmon/internal/complaint"
)

// Summary is everything a dashboard shows about a snapshot.
type Summary struct {
	Total              int                   `json:"total" yaml:"total"`
	ByStatus           StatusCounts          `json:"byStatus" yaml:"byStatus"`
	TopClassifications []ClassificationCount `json:"topClassifications" yaml:"topClassifications"`
	Trend              []MonthBucket         `json:"trend" yaml:"trend"`
}

// Summarize computes a Summary. Total counts every complaint, including
// those with an unrecognized status.
func (e *Engine) Summarize(complaints []complaint.Complaint, topN, monthsBack int) Summary {
	return Summary{
		Total:              len(complaints),
		ByStatus:           e.AggregateByStatus(complaints),
		TopClassifications: e.AggregateByClassification(complaints, topN),
		Trend:              e.AggregateMonthlyTrend(complaints, monthsBack),
	}
}

// UniqueClassifications lists distinct non-empty classifications in
// first-seen order.
func UniqueClassifications(complaints []complaint.Complaint) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range complaints {
		if c.Classification == "" {
			continue
		}
		if _, ok := seen[c.Classification]; ok {
			continue
		}
		seen[c.Classification] = struct{}{}
		out = append(out, c.Classification)
	}
	return out
}

// Recent returns up to n complaints, newest first. Equal timestamps keep
// input order. n <= 0 returns all of them.
func Recent(complaints []complaint.Complaint, n int) []complaint.Complaint {
	out := make([]complaint.Complaint, len(complaints))
	copy(out, complaints)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Find looks a complaint up by ID.
func Find(complaints []complaint.Complaint, id string) (complaint.Complaint, bool) {
	for _, c := range complaints {
		if c.ID == id {
			return c, true
		}
	}
	return complaint.Complaint{}, false
}
