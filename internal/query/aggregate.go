package query

import (
	"fmt"
	"sort"
	"time"

	"railmon/internal/complaint"
)

// StatusCounts holds per-status totals. Complaints with an unrecognized
// status are not counted anywhere.
type StatusCounts struct {
	Pending    int `json:"pending" yaml:"pending"`
	InProgress int `json:"inProgress" yaml:"inProgress"`
	Resolved   int `json:"resolved" yaml:"resolved"`
}

// Total is the number of complaints with a recognized status.
func (s StatusCounts) Total() int {
	return s.Pending + s.InProgress + s.Resolved
}

// Get returns the count for status.
func (s StatusCounts) Get(status complaint.Status) int {
	switch status {
	case complaint.StatusPending:
		return s.Pending
	case complaint.StatusInProgress:
		return s.InProgress
	case complaint.StatusResolved:
		return s.Resolved
	}
	return 0
}

// AggregateByStatus counts complaints per canonical status.
func (e *Engine) AggregateByStatus(complaints []complaint.Complaint) StatusCounts {
	var counts StatusCounts
	for _, c := range complaints {
		switch c.Status {
		case complaint.StatusPending:
			counts.Pending++
		case complaint.StatusInProgress:
			counts.InProgress++
		case complaint.StatusResolved:
			counts.Resolved++
		}
	}
	return counts
}

// ClassificationCount is one histogram entry.
type ClassificationCount struct {
	Classification string `json:"classification" yaml:"classification"`
	Count          int    `json:"count" yaml:"count"`
}

// AggregateByClassification counts complaints per classification, most
// frequent first. Ties keep first-seen order. Unclassified complaints are
// left out. topN <= 0 keeps every entry.
func (e *Engine) AggregateByClassification(complaints []complaint.Complaint, topN int) []ClassificationCount {
	index := make(map[string]int)
	var hist []ClassificationCount
	for _, c := range complaints {
		if c.Classification == "" {
			continue
		}
		i, ok := index[c.Classification]
		if !ok {
			i = len(hist)
			index[c.Classification] = i
			hist = append(hist, ClassificationCount{Classification: c.Classification})
		}
		hist[i].Count++
	}

	sort.SliceStable(hist, func(i, j int) bool {
		return hist[i].Count > hist[j].Count
	})

	if topN > 0 && len(hist) > topN {
		hist = hist[:topN]
	}
	if hist == nil {
		return []ClassificationCount{}
	}
	return hist
}

// MonthBucket is one point of the monthly trend.
type MonthBucket struct {
	Year       int        `json:"year" yaml:"year"`
	Month      time.Month `json:"month" yaml:"month"`
	Complaints int        `json:"complaints" yaml:"complaints"`
	Resolved   int        `json:"resolved" yaml:"resolved"`
}

// Label renders the bucket as "Jan 2024".
func (b MonthBucket) Label() string {
	return fmt.Sprintf("%s %d", b.Month.String()[:3], b.Year)
}

func (b MonthBucket) key() int {
	return b.Year*12 + int(b.Month) - 1
}

// AggregateMonthlyTrend buckets complaints by calendar month in the
// engine's location and returns the most recent monthsBack buckets, oldest
// first. Months without complaints are not synthesized. monthsBack <= 0
// keeps every bucket.
func (e *Engine) AggregateMonthlyTrend(complaints []complaint.Complaint, monthsBack int) []MonthBucket {
	index := make(map[int]int)
	var buckets []MonthBucket
	for _, c := range complaints {
		local := c.CreatedAt.In(e.loc)
		b := MonthBucket{Year: local.Year(), Month: local.Month()}
		i, ok := index[b.key()]
		if !ok {
			i = len(buckets)
			index[b.key()] = i
			buckets = append(buckets, b)
		}
		buckets[i].Complaints++
		if c.Status == complaint.StatusResolved {
			buckets[i].Resolved++
		}
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].key() < buckets[j].key()
	})

	if monthsBack > 0 && len(buckets) > monthsBack {
		buckets = buckets[len(buckets)-monthsBack:]
	}
	if buckets == nil {
		return []MonthBucket{}
	}
	return buckets
}
