package summary

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railmon/internal/complaint"
	"railmon/internal/query"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixture() []complaint.Complaint {
	return []complaint.Complaint{
		{ID: "a", TrainNumber: "12951", SourceStation: "Delhi", DestinationStation: "Mumbai", Classification: "Cleanliness",
			Text: "Dirty toilets in coach B2", Status: complaint.StatusResolved, CreatedAt: now.AddDate(0, -1, 0)},
		{ID: "b", TrainNumber: "12002", SourceStation: "Bhopal", DestinationStation: "Delhi", Classification: "Medical Emergency",
			Text: "Passenger fainted, need a doctor", Status: complaint.StatusPending, CreatedAt: now.AddDate(0, 0, -1),
			SentimentScore: complaint.Float64(0.995)},
		{ID: "c", TrainNumber: "12951", SourceStation: "Delhi", DestinationStation: "Mumbai", Classification: "Cleanliness",
			Text: "Water leaking from the roof near seat 34 and the floor is slippery", Status: complaint.StatusInProgress,
			CreatedAt: now.AddDate(0, 0, -3), AssignedTo: "Ravi"},
		{ID: "d", Classification: "Security", Text: "Unattended bag", Status: complaint.StatusResolved,
			CreatedAt: now.AddDate(0, 0, -2)},
	}
}

func engine() *query.Engine {
	return query.New(query.WithClock(func() time.Time { return now }))
}

func TestBuildReport(t *testing.T) {
	opts := DefaultOptions()
	opts.RecentN = 2

	r := BuildReport(engine(), fixture(), opts)

	assert.Equal(t, "Railway Complaints Dashboard", r.Title)
	assert.Equal(t, now, r.GeneratedAt)
	assert.Equal(t, 4, r.Summary.Total)
	assert.Equal(t, query.StatusCounts{Pending: 1, InProgress: 1, Resolved: 2}, r.Summary.ByStatus)
	require.Len(t, r.Recent, 2)
	assert.Equal(t, "b", r.Recent[0].ID)

	require.Len(t, r.Alerts, 1, "resolved complaints do not raise alerts")
	assert.Equal(t, "b", r.Alerts[0].Complaint.ID)
	assert.Equal(t, complaint.PriorityCritical, r.Alerts[0].Priority)
}

func TestBuildReportEmpty(t *testing.T) {
	r := BuildReport(engine(), nil, Options{})
	assert.Equal(t, DefaultOptions().Title, r.Title)
	assert.Zero(t, r.Summary.Total)
	assert.Empty(t, r.Alerts)
	assert.Empty(t, r.Recent)
}

func TestCaption(t *testing.T) {
	r := BuildReport(engine(), fixture(), DefaultOptions())
	r.Title = "Zone <North>"

	caption := r.Caption()
	assert.Contains(t, caption, "Zone &lt;North&gt;")
	assert.Contains(t, caption, "Total: <b>4</b>")
	assert.Contains(t, caption, "Resolved: <b>2</b>")
	assert.Contains(t, caption, "1 open emergency alert(s)")
}

func TestRenderReport(t *testing.T) {
	r := BuildReport(engine(), fixture(), DefaultOptions())

	data, err := RenderReport(r)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int(canvasWidth), img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dy(), int(titleHeight+cardHeight+chartHeight))
}

func TestRenderReportEmpty(t *testing.T) {
	data, err := RenderReport(BuildReport(engine(), nil, DefaultOptions()))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestWrapText(t *testing.T) {
	f, err := loadFonts()
	require.NoError(t, err)
	dc := gg.NewContext(1, 1)
	dc.SetFontFace(f.face(false, fontSize))

	assert.Equal(t, []string{"short"}, wrapText(dc, "short", 500))
	assert.Equal(t, []string{"no limit at all"}, wrapText(dc, "no limit\nat all", 0))

	long := strings.Repeat("word ", 40)
	lines := wrapText(dc, long, 200)
	assert.Greater(t, len(lines), 1)
	for _, line := range lines {
		w, _ := dc.MeasureString(line)
		assert.LessOrEqual(t, w, 200.0)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate(" abc\n", 5))
	assert.Equal(t, "शौचा…", truncate("शौचालय", 4))
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, pendingColor, statusColor(complaint.StatusPending))
	assert.Equal(t, footerColor, statusColor(complaint.Status("weird")))
}
