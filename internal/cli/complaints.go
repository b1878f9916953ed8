package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"railmon/internal/complaint"
	"railmon/internal/query"
)

func (a *app) listCmd() *cobra.Command {
	var (
		all   bool
		spec  = query.DefaultFilter()
		rng   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List complaints matching a filter",
		Long: `List complaints, newest first, filtered by status, age, text and
classification. Every filter is combined with AND.

Search matches train number, PNR, stations and complaint text
(case-insensitive). Whitespace in the search term is significant.

--classification must be one of the classifications present in the fetched
complaints.`,
		Args: cobra.NoArgs,
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			cs, err := a.fetch(ctx, all)
			if err != nil {
				return err
			}
			spec.DateRange = query.DateRange(rng)
			if err := checkClassification(cs, spec.Classification); err != nil {
				return err
			}

			matched := query.Recent(a.engine.Filter(cs, spec), limit)
			return a.print(out, matched, func() string { return complaintTable(matched) })
		}),
	}

	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "list every complaint (admin)")
	f.StringVar(&spec.Status, "status", query.All, "pending, inProgress, resolved or all")
	f.StringVar(&rng, "range", string(query.RangeAll), "7days, 30days or all")
	f.StringVarP(&spec.SearchTerm, "search", "s", "", "free-text search")
	f.StringVar(&spec.Classification, "classification", query.All, "exact classification or all")
	f.IntVarP(&limit, "limit", "n", 0, "show at most n complaints (0 for all)")
	return cmd
}

// checkClassification rejects a classification none of cs carry.
func checkClassification(cs []complaint.Complaint, classification string) error {
	if classification == "" || classification == query.All {
		return nil
	}
	known := query.UniqueClassifications(cs)
	if slices.Contains(known, classification) {
		return nil
	}
	if len(known) == 0 {
		return fmt.Errorf("unknown classification %q (no classified complaints)", classification)
	}
	return fmt.Errorf("unknown classification %q (available: %s)", classification, strings.Join(known, ", "))
}

func (a *app) showCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one complaint in full",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			cs, err := a.fetch(ctx, all || a.sess.IsAdmin())
			if err != nil {
				return err
			}
			c, ok := query.Find(cs, args[0])
			if !ok {
				return fmt.Errorf("complaint %s not found", args[0])
			}
			return a.print(out, c, func() string { return complaintDetail(c) })
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "search every complaint (admin)")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Status totals, top classifications and the monthly trend",
		Args:  cobra.NoArgs,
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			cs, err := a.fetch(ctx, all)
			if err != nil {
				return err
			}
			s := a.engine.Summarize(cs, a.cfg.TopClassifications, a.cfg.TrendMonths)
			return a.print(out, s, func() string { return summaryTables(s) })
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "summarize every complaint (admin)")
	return cmd
}

func summaryTables(s query.Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Status"))
	b.WriteString("\n")
	st := newTable("Total", "Pending", "In Progress", "Resolved")
	st.Row(fmt.Sprint(s.Total), fmt.Sprint(s.ByStatus.Pending), fmt.Sprint(s.ByStatus.InProgress), fmt.Sprint(s.ByStatus.Resolved))
	b.WriteString(st.String())

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Top classifications"))
	b.WriteString("\n")
	if len(s.TopClassifications) == 0 {
		b.WriteString(mutedStyle.Render("No classified complaints."))
	} else {
		ct := newTable("Classification", "Count", "")
		maxCount := s.TopClassifications[0].Count
		for _, c := range s.TopClassifications {
			ct.Row(c.Classification, fmt.Sprint(c.Count), bar(c.Count, maxCount, 24))
		}
		b.WriteString(ct.String())
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Monthly trend"))
	b.WriteString("\n")
	if len(s.Trend) == 0 {
		b.WriteString(mutedStyle.Render("No complaints yet."))
	} else {
		tt := newTable("Month", "Complaints", "Resolved")
		for _, m := range s.Trend {
			tt.Row(m.Label(), fmt.Sprint(m.Complaints), fmt.Sprint(m.Resolved))
		}
		b.WriteString(tt.String())
	}
	return b.String()
}

func bar(n, maxN, width int) string {
	if maxN <= 0 {
		return ""
	}
	w := n * width / maxN
	if w == 0 && n > 0 {
		w = 1
	}
	return lipgloss.NewStyle().Foreground(colorAccent).Render(strings.Repeat("█", w))
}

func (a *app) alertsCmd() *cobra.Command {
	var (
		all   bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Complaints flagged as emergencies",
		Long: `Flag complaints whose classification names an emergency keyword
(ALERT_KEYWORDS) or whose sentiment score is above
ALERT_SENTIMENT_THRESHOLD. Scores above 0.99 are Critical, the rest High.`,
		Args: cobra.NoArgs,
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			cs, err := a.fetch(ctx, all)
			if err != nil {
				return err
			}
			if limit < 0 {
				limit = a.cfg.AlertLimit
			}
			alerts := a.engine.DeriveEmergencyAlerts(cs, a.cfg.AlertKeywords, a.cfg.AlertSentimentThreshold, limit)
			return a.print(out, alerts, func() string { return alertTable(alerts) })
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "scan every complaint (admin)")
	cmd.Flags().IntVarP(&limit, "limit", "n", -1, "show at most n alerts (0 for all, default ALERT_LIMIT)")
	return cmd
}

func alertTable(alerts []query.Alert) string {
	if len(alerts) == 0 {
		return mutedStyle.Render("No emergency complaints.")
	}
	t := newTable("Priority", "ID", "Train", "Classification", "Score", "Status", "Complaint")
	for _, al := range alerts {
		c := al.Complaint
		score := "-"
		if s, ok := c.Score(); ok {
			score = fmt.Sprintf("%.3f", s)
		}
		t.Row(priorityText(al.Priority), c.ID, c.TrainNumber, orDash(c.Classification), score, statusText(c.Status), truncate(c.Text, 40))
	}
	return t.String()
}

func priorityText(p complaint.Priority) string {
	color := colorPending
	if p == complaint.PriorityCritical {
		color = colorAlert
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(string(p))
}
