// Package summary builds and renders the dashboard report: status totals,
// top classifications, the monthly trend, open emergency alerts and the most
// recent complaints.
package summary

import (
	"fmt"
	"html"
	"strings"
	"time"

	"railmon/internal/complaint"
	"railmon/internal/query"
)

// Options controls what goes into a report.
type Options struct {
	Title      string
	TopN       int // classifications shown, <= 0 for all
	MonthsBack int // trend buckets, <= 0 for all
	Keywords   []string
	Threshold  float64
	AlertLimit int // <= 0 for all
	RecentN    int // rows in the recent table, <= 0 for all
}

// DefaultOptions mirrors the dashboard defaults.
func DefaultOptions() Options {
	return Options{
		Title:      "Railway Complaints Dashboard",
		TopN:       6,
		MonthsBack: 6,
		Keywords:   []string{"Emergency", "Security", "Medical", "Safety", "Harassment"},
		Threshold:  0.95,
		AlertLimit: 3,
		RecentN:    8,
	}
}

// Report is a rendered-ready dashboard snapshot.
type Report struct {
	Title       string                `json:"title" yaml:"title"`
	GeneratedAt time.Time             `json:"generatedAt" yaml:"generatedAt"`
	Summary     query.Summary         `json:"summary" yaml:"summary"`
	Alerts      []query.Alert         `json:"alerts" yaml:"alerts"`
	Recent      []complaint.Complaint `json:"recent" yaml:"recent"`
}

// BuildReport computes a report over complaints. Alerts are derived from
// complaints that are not resolved yet.
func BuildReport(e *query.Engine, complaints []complaint.Complaint, opts Options) Report {
	title := opts.Title
	if title == "" {
		title = DefaultOptions().Title
	}

	open := make([]complaint.Complaint, 0, len(complaints))
	for _, c := range complaints {
		if c.Status != complaint.StatusResolved {
			open = append(open, c)
		}
	}

	return Report{
		Title:       title,
		GeneratedAt: e.Now(),
		Summary:     e.Summarize(complaints, opts.TopN, opts.MonthsBack),
		Alerts:      e.DeriveEmergencyAlerts(query.Recent(open, 0), opts.Keywords, opts.Threshold, opts.AlertLimit),
		Recent:      query.Recent(complaints, opts.RecentN),
	}
}

// Caption is the short HTML text sent with the report image.
func (r Report) Caption() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s</b>\n", html.EscapeString(r.Title))
	fmt.Fprintf(&b, "🕒 %s\n\n", r.GeneratedAt.Format("02 Jan 2006, 03:04 PM"))
	fmt.Fprintf(&b, "Total: <b>%d</b> | Pending: <b>%d</b> | In Progress: <b>%d</b> | Resolved: <b>%d</b>",
		r.Summary.Total, r.Summary.ByStatus.Pending, r.Summary.ByStatus.InProgress, r.Summary.ByStatus.Resolved)
	if n := len(r.Alerts); n > 0 {
		fmt.Fprintf(&b, "\n🚨 %d open emergency alert(s)", n)
	}
	return b.String()
}
