package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"railmon/internal/complaint"
)

func TestFilterSearchScenario(t *testing.T) {
	e := New()
	cs := []complaint.Complaint{
		{ID: "1", SourceStation: "Delhi", DestinationStation: "Agra"},
		{ID: "2", SourceStation: "Mumbai", DestinationStation: "Pune"},
	}

	got := e.Filter(cs, FilterSpec{SearchTerm: "DEL"})
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestFilterDateRangeScenario(t *testing.T) {
	e := New(fixedClock(day(2024, 1, 10)))
	cs := []complaint.Complaint{
		{ID: "nine-days", CreatedAt: day(2024, 1, 1)},
		{ID: "five-days", CreatedAt: day(2024, 1, 5)},
	}

	assert.Equal(t, []string{"five-days"}, ids(e.Filter(cs, FilterSpec{DateRange: RangeLast7Days})))
	assert.Equal(t, []string{"nine-days", "five-days"}, ids(e.Filter(cs, FilterSpec{DateRange: RangeLast30Days})))
}

func TestFilterDateRangeUsesElapsedDays(t *testing.T) {
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	e := New(fixedClock(now))
	cs := []complaint.Complaint{
		// 7 days 23 hours ago: floor gives 7, so still inside the window.
		{ID: "edge-in", CreatedAt: now.Add(-(7*24 + 23) * time.Hour)},
		{ID: "edge-out", CreatedAt: now.Add(-8 * 24 * time.Hour)},
		{ID: "future", CreatedAt: now.Add(48 * time.Hour)},
	}
	assert.Equal(t, []string{"edge-in", "future"}, ids(e.Filter(cs, FilterSpec{DateRange: RangeLast7Days})))
}

func TestFilterPredicates(t *testing.T) {
	now := day(2024, 3, 31)
	e := New(fixedClock(now))

	cs := []complaint.Complaint{
		{ID: "1", TrainNumber: "12951", PNRNumber: "1234567890", SourceStation: "Delhi", DestinationStation: "Mumbai",
			Text: "Coach was dirty", Classification: "Cleanliness", Status: complaint.StatusPending, CreatedAt: day(2024, 3, 30)},
		{ID: "2", TrainNumber: "12952", PNRNumber: "2234567890", SourceStation: "Mumbai", DestinationStation: "Delhi",
			Text: "Passenger fainted, needed a doctor", Classification: "Medical Emergency", Status: complaint.StatusInProgress, CreatedAt: day(2024, 3, 1)},
		{ID: "3", TrainNumber: "EXP-7", PNRNumber: "3234567890", SourceStation: "Chennai", DestinationStation: "Bengaluru",
			Text: "Food was cold", Classification: "Catering", Status: complaint.StatusResolved, CreatedAt: day(2024, 1, 15)},
		{ID: "4", TrainNumber: "22691", PNRNumber: "4234567890", SourceStation: "Kolkata", DestinationStation: "Patna",
			Text: "Berth broken", Classification: "", Status: complaint.Status("escalated"), CreatedAt: day(2024, 3, 29)},
	}

	tests := []struct {
		name string
		spec FilterSpec
		want []string
	}{
		{name: "default matches all", spec: DefaultFilter(), want: []string{"1", "2", "3", "4"}},
		{name: "zero spec matches all", spec: FilterSpec{}, want: []string{"1", "2", "3", "4"}},
		{name: "canonical status", spec: FilterSpec{Status: "inProgress"}, want: []string{"2"}},
		{name: "legacy status spelling", spec: FilterSpec{Status: "Resolved"}, want: []string{"3"}},
		{name: "invalid status means all", spec: FilterSpec{Status: "bogus"}, want: []string{"1", "2", "3", "4"}},
		{name: "invalid range means all", spec: FilterSpec{DateRange: "90days"}, want: []string{"1", "2", "3", "4"}},
		{name: "classification exact", spec: FilterSpec{Classification: "Medical Emergency"}, want: []string{"2"}},
		{name: "classification is case sensitive", spec: FilterSpec{Classification: "medical emergency"}, want: []string{}},
		{name: "search by train number", spec: FilterSpec{SearchTerm: "1295"}, want: []string{"1", "2"}},
		{name: "search non-digit train number folds case", spec: FilterSpec{SearchTerm: "exp-7"}, want: []string{"3"}},
		{name: "search by pnr", spec: FilterSpec{SearchTerm: "42345"}, want: []string{"4"}},
		{name: "search complaint text", spec: FilterSpec{SearchTerm: "DOCTOR"}, want: []string{"2"}},
		{name: "search destination", spec: FilterSpec{SearchTerm: "patna"}, want: []string{"4"}},
		{name: "search conjoined with status", spec: FilterSpec{SearchTerm: "delhi", Status: "pending"}, want: []string{"1"}},
		{name: "search conjoined with classification", spec: FilterSpec{SearchTerm: "delhi", Classification: "Catering"}, want: []string{}},
		{name: "all four predicates", spec: FilterSpec{Status: "pending", DateRange: RangeLast7Days, Classification: "Cleanliness", SearchTerm: "dirty"}, want: []string{"1"}},
		{name: "date range and status", spec: FilterSpec{Status: "inProgress", DateRange: RangeLast7Days}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(e.Filter(cs, tt.spec)))
		})
	}
}

func TestFilterSearchKeepsWhitespace(t *testing.T) {
	e := New()
	cs := []complaint.Complaint{
		{ID: "1", SourceStation: "Delhi"},
		{ID: "2", SourceStation: "Mumbai"},
	}

	assert.Equal(t, []string{}, ids(e.Filter(cs, FilterSpec{SearchTerm: " "})))
	assert.Equal(t, []string{}, ids(e.Filter(cs, FilterSpec{SearchTerm: "lhi "})))
	assert.Equal(t, []string{"1"}, ids(e.Filter(cs, FilterSpec{SearchTerm: "lhi"})))
	assert.Equal(t, []string{"1", "2"}, ids(e.Filter(cs, FilterSpec{SearchTerm: ""})))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	e := New()
	cs := []complaint.Complaint{{ID: "1", Status: complaint.StatusPending}, {ID: "2", Status: complaint.StatusResolved}}
	before := append([]complaint.Complaint(nil), cs...)

	got := e.Filter(cs, FilterSpec{Status: "resolved"})
	got[0].ID = "changed"

	assert.Equal(t, before, cs)
	assert.NotNil(t, e.Filter(nil, DefaultFilter()))
}
