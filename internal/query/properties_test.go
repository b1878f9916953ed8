package query

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"railmon/internal/complaint"
)

// randomComplaints builds a reproducible mixed snapshot, including records
// with unknown statuses and missing classifications.
func randomComplaints(r *rand.Rand, n int, now time.Time) []complaint.Complaint {
	statuses := []complaint.Status{complaint.StatusPending, complaint.StatusInProgress, complaint.StatusResolved, "Closed", ""}
	classes := []string{"Cleanliness", "Catering", "Medical", "Security", "Punctuality", "Staff Behaviour", "Water", ""}
	stations := []string{"Delhi", "Mumbai", "Chennai", "Kolkata", "Agra", "Pune"}

	out := make([]complaint.Complaint, n)
	for i := range out {
		c := complaint.Complaint{
			ID:                 fmt.Sprintf("c%d", i),
			TrainNumber:        fmt.Sprintf("%05d", r.Intn(30000)),
			PNRNumber:          fmt.Sprintf("%010d", r.Int63n(1e10)),
			SourceStation:      stations[r.Intn(len(stations))],
			DestinationStation: stations[r.Intn(len(stations))],
			Text:               "complaint text " + stations[r.Intn(len(stations))],
			Classification:     classes[r.Intn(len(classes))],
			Status:             statuses[r.Intn(len(statuses))],
			CreatedAt:          now.Add(-time.Duration(r.Int63n(int64(400 * 24 * time.Hour)))),
		}
		if r.Intn(3) > 0 {
			c.SentimentScore = complaint.Float64(r.Float64())
		}
		out[i] = c
	}
	return out
}

func isSubsequence(sub, full []complaint.Complaint) bool {
	j := 0
	for i := 0; i < len(full) && j < len(sub); i++ {
		if full[i].ID == sub[j].ID {
			j++
		}
	}
	return j == len(sub)
}

func TestQueryProperties(t *testing.T) {
	now := day(2024, 6, 1)
	e := New(fixedClock(now))
	r := rand.New(rand.NewSource(7))

	specs := []FilterSpec{
		{Status: "pending"},
		{Status: "Resolved", DateRange: RangeLast30Days},
		{DateRange: RangeLast7Days, SearchTerm: "del"},
		{Classification: "Medical", SearchTerm: "1"},
		{Status: "inProgress", Classification: "Catering", DateRange: RangeLast30Days, SearchTerm: "complaint"},
	}

	for round := 0; round < 25; round++ {
		cs := randomComplaints(r, r.Intn(120), now)

		assert.Equal(t, ids(cs), ids(e.Filter(cs, DefaultFilter())), "default filter is the identity")
		for _, spec := range specs {
			assert.True(t, isSubsequence(e.Filter(cs, spec), cs), "filter keeps relative order for %+v", spec)
		}

		counts := e.AggregateByStatus(cs)
		assert.LessOrEqual(t, counts.Total(), len(cs))
		known := 0
		for _, c := range cs {
			if c.Status.Valid() {
				known++
			}
		}
		assert.Equal(t, known, counts.Total())

		distinct := len(UniqueClassifications(cs))
		for _, topN := range []int{1, 3, 6} {
			hist := e.AggregateByClassification(cs, topN)
			assert.LessOrEqual(t, len(hist), min(topN, distinct))
			for i := 1; i < len(hist); i++ {
				assert.GreaterOrEqual(t, hist[i-1].Count, hist[i].Count)
			}
			for _, h := range hist {
				assert.Positive(t, h.Count)
			}
		}

		for _, n := range []int{1, 6, 12} {
			trend := e.AggregateMonthlyTrend(cs, n)
			assert.LessOrEqual(t, len(trend), n)
			for i, b := range trend {
				assert.LessOrEqual(t, b.Resolved, b.Complaints)
				if i > 0 {
					assert.Less(t, trend[i-1].key(), b.key())
				}
			}
		}

		for _, a := range e.DeriveEmergencyAlerts(cs, defaultKeywords, 0.95, 0) {
			score, ok := a.Complaint.Score()
			if a.Priority == complaint.PriorityCritical {
				assert.True(t, ok && score > CriticalScore)
			}
		}
	}
}
