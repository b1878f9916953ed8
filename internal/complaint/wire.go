package complaint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Wire is a complaint as the backend sends it. Fields are loosely typed
// because older backend builds send numbers where strings are expected and
// nulls for unscored complaints.
type Wire struct {
	ID                 flexString      `json:"id"`
	TrainNumber        flexString      `json:"trainNumber"`
	PNRNumber          flexString      `json:"pnrNumber"`
	CoachNumber        flexString      `json:"coachNumber"`
	SeatNumber         flexString      `json:"seatNumber"`
	SourceStation      flexString      `json:"sourceStation"`
	DestinationStation flexString      `json:"destinationStation"`
	Complaint          flexString      `json:"complaint"`
	Classification     flexString      `json:"classification"`
	Sentiment          flexString      `json:"sentiment"`
	SentimentScore     json.RawMessage `json:"sentimentScore"`
	Status             flexString      `json:"status"`
	CreatedAt          flexString      `json:"createdAt"`
	Resolution         flexString      `json:"resolution"`
	AssignedTo         flexString      `json:"assignedTo"`
}

// flexString accepts a JSON string, number or boolean literal. null and
// nested values decode to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case b[0] == '{', b[0] == '[':
		*f = ""
	default:
		*f = flexString(b)
	}
	return nil
}

func (f flexString) trimmed() string {
	return strings.TrimSpace(string(f))
}

// timeLayouts are tried in order. Zone-less layouts are read as UTC, which is
// what the backend's datetime.utcnow() values mean.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime parses a backend timestamp.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// parseScore reads a sentiment score. Anything that is not a finite number
// within [0,1] counts as absent.
func parseScore(raw json.RawMessage) *float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
		return nil
	}
	return &v
}

// Sanitize turns a wire record into a Complaint.
//
// A record without an id or with an unreadable createdAt is rejected.
// Everything else is repaired: unknown statuses are kept verbatim, a bad
// score is dropped, resolution survives only on resolved complaints and
// assignedTo only on in-progress ones.
func Sanitize(w Wire) (Complaint, error) {
	id := w.ID.trimmed()
	if id == "" {
		return Complaint{}, fmt.Errorf("complaint without id")
	}

	createdAt, err := ParseTime(string(w.CreatedAt))
	if err != nil {
		return Complaint{}, fmt.Errorf("complaint %s: %w", id, err)
	}

	status, _ := ParseStatus(string(w.Status))

	c := Complaint{
		ID:                 id,
		TrainNumber:        w.TrainNumber.trimmed(),
		PNRNumber:          w.PNRNumber.trimmed(),
		CoachNumber:        w.CoachNumber.trimmed(),
		SeatNumber:         w.SeatNumber.trimmed(),
		SourceStation:      w.SourceStation.trimmed(),
		DestinationStation: w.DestinationStation.trimmed(),
		Text:               strings.TrimSpace(string(w.Complaint)),
		Classification:     w.Classification.trimmed(),
		Sentiment:          w.Sentiment.trimmed(),
		SentimentScore:     parseScore(w.SentimentScore),
		Status:             status,
		CreatedAt:          createdAt,
	}
	if status == StatusResolved {
		c.Resolution = strings.TrimSpace(string(w.Resolution))
	}
	if status == StatusInProgress {
		c.AssignedTo = w.AssignedTo.trimmed()
	}
	return c, nil
}

// SanitizeAll sanitizes a fetched list, skipping rejected records.
// Order is preserved. The second return value is the number skipped.
func SanitizeAll(records []Wire) ([]Complaint, int) {
	out := make([]Complaint, 0, len(records))
	skipped := 0
	for _, w := range records {
		c, err := Sanitize(w)
		if err != nil {
			skipped++
			zap.S().Warnf("⚠️  Skipping malformed complaint: %v", err)
			continue
		}
		out = append(out, c)
	}
	return out, skipped
}
