package summary

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"railmon/internal/complaint"
	"railmon/internal/query"
)

// Layout constants, rendered at 2x scale for Telegram clarity
const (
	canvasWidth   = 1800.0
	margin        = 40.0
	gap           = 24.0
	titleHeight   = 120.0
	cardHeight    = 150.0
	chartHeight   = 460.0
	alertRowH     = 64.0
	sectionTitleH = 60.0
	cellPaddingX  = 18
	cellPaddingY  = 14
	minRowHeight  = 70
	headerHeight  = 76
	fontSize      = 24
	headerFontSz  = 24
	titleFontSz   = 40
	footerPadding = 80
	maxTextWidth  = 560.0
)

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 255} }

var (
	bgColor         = rgb(245, 247, 250)
	titleColor      = rgb(30, 41, 59)
	panelColor      = rgb(255, 255, 255)
	headerBgColor   = rgb(37, 99, 235)
	headerTextColor = rgb(255, 255, 255)
	rowEvenColor    = rgb(255, 255, 255)
	rowOddColor     = rgb(241, 245, 249)
	textColor       = titleColor
	borderColor     = rgb(203, 213, 225)
	footerColor     = rgb(100, 116, 139)
	pendingColor    = rgb(245, 158, 11)
	progressColor   = rgb(59, 130, 246)
	resolvedColor   = rgb(34, 197, 94)
	criticalColor   = rgb(220, 38, 38)
	highColor       = rgb(234, 88, 12)
	barColor        = rgb(99, 102, 241)
)

// column definition for the recent complaints table.
type column struct {
	header   string
	field    func(c *complaint.Complaint) string
	maxWidth float64 // 0 means auto
}

// columns defines the table layout.
var columns = []column{
	{"ID", func(c *complaint.Complaint) string { return truncate(c.ID, 12) }, 0},
	{"Train", func(c *complaint.Complaint) string { return c.TrainNumber }, 0},
	{"Route", func(c *complaint.Complaint) string { return c.Route() }, 320},
	{"Classification", func(c *complaint.Complaint) string { return c.Classification }, 280},
	{"Status", func(c *complaint.Complaint) string { return c.Status.Label() }, 0},
	{"Filed", func(c *complaint.Complaint) string { return c.CreatedAt.Format("02 Jan 2006") }, 0},
	{"Complaint", func(c *complaint.Complaint) string { return truncate(c.Text, 160) }, maxTextWidth},
}

// systemFonts lists font files to try before the embedded Go fonts.
var systemFonts = map[bool][]string{
	false: {
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/Library/Fonts/Arial.ttf",
	},
	true: {
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
		"/Library/Fonts/Arial Bold.ttf",
	},
}

// findFont returns the first installed system font, or "".
func findFont(bold bool) string {
	paths := systemFonts[bold]
	if runtime.GOOS == "windows" {
		dir := os.Getenv("WINDIR")
		if dir == "" {
			dir = `C:\Windows`
		}
		name := "arial.ttf"
		if bold {
			name = "arialbd.ttf"
		}
		paths = []string{filepath.Join(dir, "Fonts", name)}
	}
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// fonts holds the parsed regular and bold fonts. System DejaVu/Arial is
// preferred because it covers more scripts; the embedded Go fonts are the
// fallback so rendering works in bare containers.
type fonts struct {
	regular *truetype.Font
	bold    *truetype.Font
}

var (
	loadFontsOnce sync.Once
	loadedFonts   fonts
	loadFontsErr  error
)

func loadFonts() (fonts, error) {
	loadFontsOnce.Do(func() {
		loadedFonts.regular, loadFontsErr = parseFont(findFont(false), goregular.TTF)
		if loadFontsErr != nil {
			return
		}
		loadedFonts.bold, loadFontsErr = parseFont(findFont(true), gobold.TTF)
	})
	return loadedFonts, loadFontsErr
}

func parseFont(path string, fallback []byte) (*truetype.Font, error) {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if f, err := truetype.Parse(data); err == nil {
				return f, nil
			}
		}
	}
	f, err := truetype.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", err)
	}
	return f, nil
}

func (f fonts) face(bold bool, size float64) font.Face {
	ttf := f.regular
	if bold {
		ttf = f.bold
	}
	return truetype.NewFace(ttf, &truetype.Options{Size: size})
}

// wrapText breaks text on word boundaries into lines no wider than
// maxWidth. A single word wider than maxWidth gets a line of its own.
func wrapText(dc *gg.Context, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	if maxWidth <= 0 {
		return []string{strings.Join(words, " ")}
	}

	lines := make([]string, 0, 2)
	line := words[0]
	for _, w := range words[1:] {
		if lw, _ := dc.MeasureString(line + " " + w); lw <= maxWidth {
			line += " " + w
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

// lineSpacing is the distance between baselines of wrapped text in the
// current font.
func lineSpacing(dc *gg.Context) (lineH, spacing float64) {
	_, lineH = dc.MeasureString("Ay")
	return lineH, lineH + 4
}

// computeRowHeights sizes each table row to its tallest wrapped cell.
func computeRowHeights(dc *gg.Context, complaints []complaint.Complaint, colWidths []float64) []float64 {
	_, spacing := lineSpacing(dc)

	heights := make([]float64, len(complaints))
	for row := range complaints {
		lines := 1
		for i, col := range columns {
			n := len(wrapText(dc, col.field(&complaints[row]), colWidths[i]-cellPaddingX*2))
			lines = max(lines, n)
		}
		heights[row] = max(float64(lines)*spacing+cellPaddingY*2, minRowHeight)
	}
	return heights
}

// measureColumns sizes the table columns to their content, capped by
// maxWidth, and scales them to fill tableWidth.
func measureColumns(dc *gg.Context, f fonts, complaints []complaint.Complaint, tableWidth float64) []float64 {
	dc.SetFontFace(f.face(true, headerFontSz))
	colWidths := make([]float64, len(columns))
	for i, col := range columns {
		w, _ := dc.MeasureString(col.header)
		colWidths[i] = w + cellPaddingX*2 + 4
	}

	dc.SetFontFace(f.face(false, fontSize))
	for _, c := range complaints {
		for i, col := range columns {
			w, _ := dc.MeasureString(col.field(&c))
			if needed := w + cellPaddingX*2 + 4; needed > colWidths[i] {
				colWidths[i] = needed
			}
		}
	}

	var total float64
	for i, col := range columns {
		if col.maxWidth > 0 && colWidths[i] > col.maxWidth {
			colWidths[i] = col.maxWidth
		}
		total += colWidths[i]
	}

	// The last column absorbs the slack; overflow shrinks every column.
	if total < tableWidth {
		colWidths[len(colWidths)-1] += tableWidth - total
	} else if total > tableWidth {
		scale := tableWidth / total
		for i := range colWidths {
			colWidths[i] *= scale
		}
	}
	return colWidths
}

// RenderReport renders a report as a PNG image.
func RenderReport(r Report) ([]byte, error) {
	f, err := loadFonts()
	if err != nil {
		return nil, err
	}

	innerWidth := canvasWidth - 2*margin

	// ---- Step 1: Measure ----
	tmpDC := gg.NewContext(1, 1)
	colWidths := measureColumns(tmpDC, f, r.Recent, innerWidth)
	rowHeights := computeRowHeights(tmpDC, r.Recent, colWidths)

	var totalRowHeight float64
	for _, h := range rowHeights {
		totalRowHeight += h
	}
	if len(r.Recent) == 0 {
		totalRowHeight = minRowHeight
	}

	alertsHeight := 0.0
	if len(r.Alerts) > 0 {
		alertsHeight = sectionTitleH + float64(len(r.Alerts))*(alertRowH+8) + gap
	}

	canvasHeight := titleHeight +
		cardHeight + gap +
		chartHeight + gap +
		alertsHeight +
		sectionTitleH + headerHeight + totalRowHeight +
		footerPadding

	// ---- Step 2: Draw ----
	dc := gg.NewContext(int(canvasWidth), int(canvasHeight))
	dc.SetColor(bgColor)
	dc.Clear()

	// Title
	dc.SetFontFace(f.face(true, titleFontSz))
	dc.SetColor(titleColor)
	title := fmt.Sprintf("%s  |  %s", r.Title, r.GeneratedAt.Format("02 Jan 2006, 03:04 PM"))
	dc.DrawStringAnchored(title, canvasWidth/2, titleHeight/2, 0.5, 0.5)

	y := titleHeight
	drawCards(dc, f, r.Summary, margin, y, innerWidth)
	y += cardHeight + gap

	half := (innerWidth - gap) / 2
	drawClassifications(dc, f, r.Summary.TopClassifications, margin, y, half)
	drawTrend(dc, f, r.Summary.Trend, margin+half+gap, y, half)
	y += chartHeight + gap

	if len(r.Alerts) > 0 {
		drawAlerts(dc, f, r.Alerts, margin, y, innerWidth)
		y += alertsHeight
	}

	drawSectionTitle(dc, f, "Recent complaints", margin, y)
	y += sectionTitleH
	drawTable(dc, f, r.Recent, colWidths, rowHeights, margin, y, innerWidth)

	// Footer
	dc.SetFontFace(f.face(false, 22))
	dc.SetColor(footerColor)
	footer := fmt.Sprintf("Total: %d complaints  |  %d open alert(s)", r.Summary.Total, len(r.Alerts))
	dc.DrawStringAnchored(footer, canvasWidth/2, canvasHeight-30, 0.5, 0.5)

	// ---- Step 3: Encode to PNG ----
	return encodeImage(dc.Image())
}

func drawPanel(dc *gg.Context, x, y, w, h float64) {
	dc.SetColor(panelColor)
	dc.DrawRoundedRectangle(x, y, w, h, 16)
	dc.Fill()
	dc.SetColor(borderColor)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, w, h, 16)
	dc.Stroke()
}

func drawSectionTitle(dc *gg.Context, f fonts, text string, x, y float64) {
	dc.SetFontFace(f.face(true, 28))
	dc.SetColor(titleColor)
	dc.DrawStringAnchored(text, x, y+sectionTitleH/2, 0, 0.5)
}

func drawCards(dc *gg.Context, f fonts, s query.Summary, x, y, width float64) {
	cards := []struct {
		label string
		value int
		color color.Color
	}{
		{"Total", s.Total, headerBgColor},
		{"Pending", s.ByStatus.Pending, pendingColor},
		{"In Progress", s.ByStatus.InProgress, progressColor},
		{"Resolved", s.ByStatus.Resolved, resolvedColor},
	}

	cw := (width - gap*float64(len(cards)-1)) / float64(len(cards))
	for i, card := range cards {
		cx := x + float64(i)*(cw+gap)
		drawPanel(dc, cx, y, cw, cardHeight)

		dc.SetColor(card.color)
		dc.DrawRoundedRectangle(cx, y, 12, cardHeight, 6)
		dc.Fill()

		dc.SetFontFace(f.face(false, 24))
		dc.SetColor(footerColor)
		dc.DrawStringAnchored(card.label, cx+cw/2, y+42, 0.5, 0.5)

		dc.SetFontFace(f.face(true, 52))
		dc.SetColor(titleColor)
		dc.DrawStringAnchored(fmt.Sprint(card.value), cx+cw/2, y+100, 0.5, 0.5)
	}
}

func drawClassifications(dc *gg.Context, f fonts, counts []query.ClassificationCount, x, y, w float64) {
	drawPanel(dc, x, y, w, chartHeight)
	drawSectionTitle(dc, f, "Top classifications", x+24, y)

	if len(counts) == 0 {
		drawEmpty(dc, f, x, y, w, chartHeight)
		return
	}

	maxCount := 0
	for _, c := range counts {
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	top := y + sectionTitleH + 10
	rowH := (chartHeight - sectionTitleH - 30) / float64(len(counts))
	if rowH > 60 {
		rowH = 60
	}
	labelW := w * 0.38
	barMax := w - labelW - 120

	dc.SetFontFace(f.face(false, 22))
	for i, c := range counts {
		ry := top + float64(i)*rowH
		dc.SetColor(textColor)
		dc.DrawStringAnchored(truncate(c.Classification, 26), x+24, ry+rowH/2, 0, 0.5)

		bw := barMax * float64(c.Count) / float64(maxCount)
		dc.SetColor(barColor)
		dc.DrawRoundedRectangle(x+labelW, ry+rowH*0.2, bw, rowH*0.6, 6)
		dc.Fill()

		dc.SetColor(titleColor)
		dc.DrawStringAnchored(fmt.Sprint(c.Count), x+labelW+bw+12, ry+rowH/2, 0, 0.5)
	}
}

func drawTrend(dc *gg.Context, f fonts, trend []query.MonthBucket, x, y, w float64) {
	drawPanel(dc, x, y, w, chartHeight)
	drawSectionTitle(dc, f, "Monthly trend", x+24, y)

	if len(trend) == 0 {
		drawEmpty(dc, f, x, y, w, chartHeight)
		return
	}

	maxCount := 1
	for _, b := range trend {
		if b.Complaints > maxCount {
			maxCount = b.Complaints
		}
	}

	// Legend
	dc.SetFontFace(f.face(false, 20))
	dc.SetColor(barColor)
	dc.DrawRectangle(x+w-260, y+22, 18, 18)
	dc.Fill()
	dc.SetColor(textColor)
	dc.DrawString("Total", x+w-234, y+38)
	dc.SetColor(resolvedColor)
	dc.DrawRectangle(x+w-150, y+22, 18, 18)
	dc.Fill()
	dc.SetColor(textColor)
	dc.DrawString("Resolved", x+w-124, y+38)

	baseline := y + chartHeight - 50
	plotH := chartHeight - sectionTitleH - 90
	slot := (w - 48) / float64(len(trend))
	barW := slot * 0.32

	for i, b := range trend {
		sx := x + 24 + float64(i)*slot
		th := plotH * float64(b.Complaints) / float64(maxCount)
		rh := plotH * float64(b.Resolved) / float64(maxCount)

		dc.SetColor(barColor)
		dc.DrawRectangle(sx+slot/2-barW-2, baseline-th, barW, th)
		dc.Fill()
		dc.SetColor(resolvedColor)
		dc.DrawRectangle(sx+slot/2+2, baseline-rh, barW, rh)
		dc.Fill()

		dc.SetColor(titleColor)
		dc.DrawStringAnchored(fmt.Sprint(b.Complaints), sx+slot/2-barW/2-2, baseline-th-14, 0.5, 0.5)
		dc.SetColor(footerColor)
		dc.DrawStringAnchored(b.Label(), sx+slot/2, baseline+24, 0.5, 0.5)
	}

	dc.SetColor(borderColor)
	dc.SetLineWidth(1)
	dc.DrawLine(x+24, baseline, x+w-24, baseline)
	dc.Stroke()
}

func drawAlerts(dc *gg.Context, f fonts, alerts []query.Alert, x, y, w float64) {
	drawSectionTitle(dc, f, "Emergency alerts", x, y)
	y += sectionTitleH

	for i, a := range alerts {
		ry := y + float64(i)*(alertRowH+8)
		drawPanel(dc, x, ry, w, alertRowH)

		badge := highColor
		if a.Priority == complaint.PriorityCritical {
			badge = criticalColor
		}
		dc.SetColor(badge)
		dc.DrawRoundedRectangle(x+16, ry+14, 130, alertRowH-28, 8)
		dc.Fill()

		dc.SetFontFace(f.face(true, 20))
		dc.SetColor(headerTextColor)
		dc.DrawStringAnchored(strings.ToUpper(string(a.Priority)), x+81, ry+alertRowH/2, 0.5, 0.5)

		c := a.Complaint
		line := fmt.Sprintf("%s  |  Train %s  |  %s  |  %s", c.Classification, c.TrainNumber, c.Route(), truncate(c.Text, 90))
		dc.SetFontFace(f.face(false, 22))
		dc.SetColor(textColor)
		dc.DrawStringAnchored(line, x+170, ry+alertRowH/2, 0, 0.5)
	}
}

func drawEmpty(dc *gg.Context, f fonts, x, y, w, h float64) {
	dc.SetFontFace(f.face(false, 24))
	dc.SetColor(footerColor)
	dc.DrawStringAnchored("No data", x+w/2, y+h/2, 0.5, 0.5)
}

func drawTable(dc *gg.Context, f fonts, complaints []complaint.Complaint, colWidths, rowHeights []float64, tableX, tableY, totalWidth float64) {
	dc.SetColor(headerBgColor)
	dc.DrawRoundedRectangle(tableX, tableY, totalWidth, float64(headerHeight), 16)
	dc.Fill()

	dc.SetFontFace(f.face(true, headerFontSz))
	dc.SetColor(headerTextColor)
	x := tableX
	for i, col := range columns {
		dc.DrawStringAnchored(col.header, x+colWidths[i]/2, tableY+float64(headerHeight)/2, 0.5, 0.5)
		x += colWidths[i]
	}

	curY := tableY + float64(headerHeight)
	if len(complaints) == 0 {
		dc.SetColor(rowEvenColor)
		dc.DrawRectangle(tableX, curY, totalWidth, minRowHeight)
		dc.Fill()
		drawEmpty(dc, f, tableX, curY, totalWidth, minRowHeight)
		return
	}

	dc.SetFontFace(f.face(false, fontSize))
	var rowsH float64
	for i := range complaints {
		fill := rowEvenColor
		if i%2 == 1 {
			fill = rowOddColor
		}
		drawRow(dc, &complaints[i], tableX, curY+rowsH, totalWidth, rowHeights[i], colWidths, fill)
		rowsH += rowHeights[i]
	}

	bottom := tableY + headerHeight + rowsH
	dc.SetColor(borderColor)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(tableX, tableY, totalWidth, bottom-tableY, 16)
	dc.Stroke()

	dc.SetLineWidth(0.5)
	x = tableX
	for _, w := range colWidths[:len(colWidths)-1] {
		x += w
		dc.DrawLine(x, tableY+headerHeight, x, bottom)
	}
	dc.Stroke()
}

// drawRow paints one table row with its cells vertically centered.
func drawRow(dc *gg.Context, c *complaint.Complaint, x, y, width, h float64, colWidths []float64, fill color.Color) {
	dc.SetColor(fill)
	dc.DrawRectangle(x, y, width, h)
	dc.Fill()

	dc.SetColor(borderColor)
	dc.SetLineWidth(0.5)
	dc.DrawLine(x, y+h, x+width, y+h)
	dc.Stroke()

	lineH, spacing := lineSpacing(dc)
	for i, col := range columns {
		if col.header == "Status" {
			dc.SetColor(statusColor(c.Status))
		} else {
			dc.SetColor(textColor)
		}
		lines := wrapText(dc, col.field(c), colWidths[i]-cellPaddingX*2)
		top := y + (h-float64(len(lines))*spacing)/2 + lineH
		for n, line := range lines {
			dc.DrawString(line, x+cellPaddingX, top+float64(n)*spacing)
		}
		x += colWidths[i]
	}
}

func statusColor(s complaint.Status) color.Color {
	switch s {
	case complaint.StatusPending:
		return pendingColor
	case complaint.StatusInProgress:
		return progressColor
	case complaint.StatusResolved:
		return resolvedColor
	}
	return footerColor
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxLen {
		runes := []rune(s)
		return string(runes[:maxLen]) + "…"
	}
	return s
}
