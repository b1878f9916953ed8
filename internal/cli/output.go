package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"railmon/internal/complaint"
)

var (
	colorAccent  = lipgloss.Color("#2563EB")
	colorMuted   = lipgloss.Color("#64748B")
	colorPending = lipgloss.Color("#F59E0B")
	colorWorking = lipgloss.Color("#3B82F6")
	colorDone    = lipgloss.Color("#22C55E")
	colorAlert   = lipgloss.Color("#DC2626")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

// print writes v as JSON or YAML, or the table built by tableFn.
func (a *app) print(w io.Writer, v any, tableFn func() string) error {
	switch a.output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	_, err := fmt.Fprintln(w, tableFn())
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func keyValueTable(rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func complaintTable(cs []complaint.Complaint) string {
	if len(cs) == 0 {
		return mutedStyle.Render("No complaints found.")
	}
	t := newTable("ID", "Train", "Route", "Classification", "Status", "Filed", "Complaint")
	for _, c := range cs {
		t.Row(
			c.ID,
			c.TrainNumber,
			c.Route(),
			orDash(c.Classification),
			statusText(c.Status),
			c.CreatedAt.Local().Format("02 Jan 2006"),
			truncate(c.Text, 48),
		)
	}
	return t.String() + "\n" + mutedStyle.Render(fmt.Sprintf("%d complaint(s)", len(cs)))
}

func complaintDetail(c complaint.Complaint) string {
	score := "-"
	if s, ok := c.Score(); ok {
		score = fmt.Sprintf("%.2f", s)
		if c.Sentiment != "" {
			score += " (" + c.Sentiment + ")"
		}
	}
	rows := [][]string{
		{"ID", c.ID},
		{"Status", statusText(c.Status)},
		{"Train", c.TrainNumber},
		{"Coach / Seat", c.CoachNumber + " / " + c.SeatNumber},
		{"Route", c.Route()},
		{"PNR", c.PNRNumber},
		{"Classification", orDash(c.Classification)},
		{"Sentiment", score},
		{"Filed", c.CreatedAt.Local().Format("02 Jan 2006 15:04")},
		{"Complaint", wrap(c.Text, 60)},
	}
	if c.AssignedTo != "" {
		rows = append(rows, []string{"Assigned to", c.AssignedTo})
	}
	if c.Resolution != "" {
		rows = append(rows, []string{"Resolution", wrap(c.Resolution, 60)})
	}
	return keyValueTable(rows)
}

func statusText(s complaint.Status) string {
	style := lipgloss.NewStyle()
	switch s {
	case complaint.StatusPending:
		style = style.Foreground(colorPending)
	case complaint.StatusInProgress:
		style = style.Foreground(colorWorking)
	case complaint.StatusResolved:
		style = style.Foreground(colorDone)
	default:
		style = style.Foreground(colorMuted)
	}
	return style.Render(s.Label())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxLen {
		return string([]rune(s)[:maxLen]) + "…"
	}
	return s
}

// wrap breaks s into lines of at most width runes on word boundaries.
func wrap(s string, width int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	line := 0
	for i, w := range words {
		n := utf8.RuneCountInString(w)
		if i > 0 {
			if line+1+n > width {
				b.WriteString("\n")
				line = 0
			} else {
				b.WriteString(" ")
				line++
			}
		}
		b.WriteString(w)
		line += n
	}
	return b.String()
}
