package complaint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "railmon/internal/errors"
)

func validSubmission() Submission {
	return Submission{
		TrainNumber:        "12951",
		PNRNumber:          "1234567890",
		CoachNumber:        "B2",
		SeatNumber:         "34",
		SourceStation:      "Delhi",
		DestinationStation: "Mumbai",
		Complaint:          "The air conditioning has not worked all night.",
	}
}

func TestSubmissionValidate(t *testing.T) {
	require.NoError(t, validSubmission().Validate())

	padded := validSubmission()
	padded.PNRNumber = " 1234567890 "
	require.NoError(t, padded.Validate(), "fields are trimmed before checks")

	tests := []struct {
		name   string
		mutate func(s *Submission)
		field  string
		msg    string
	}{
		{name: "train not numeric", mutate: func(s *Submission) { s.TrainNumber = "12A51" }, field: "trainNumber", msg: "Train number must be numeric"},
		{name: "short pnr", mutate: func(s *Submission) { s.PNRNumber = "12345" }, field: "pnrNumber", msg: "PNR must be a 10-digit number"},
		{name: "pnr with letters", mutate: func(s *Submission) { s.PNRNumber = "12345ABCDE" }, field: "pnrNumber", msg: "PNR must be a 10-digit number"},
		{name: "seat not numeric", mutate: func(s *Submission) { s.SeatNumber = "34B" }, field: "seatNumber", msg: "Seat number must be numeric"},
		{name: "missing coach", mutate: func(s *Submission) { s.CoachNumber = "  " }, field: "coachNumber", msg: "coachNumber is required"},
		{name: "same stations", mutate: func(s *Submission) { s.DestinationStation = " Delhi " }, field: "destinationStation", msg: "Source and destination stations cannot be the same"},
		{name: "short text", mutate: func(s *Submission) { s.Complaint = "   too short     " }, field: "complaint", msg: "Complaint description must be at least 20 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)

			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Fields[tt.field])
		})
	}
}

func TestSubmissionValidateReportsEveryField(t *testing.T) {
	err := Submission{}.Validate()
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 7)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusResolved, true},
		{StatusInProgress, StatusResolved, true},
		{StatusResolved, StatusPending, true},
		{StatusInProgress, StatusPending, true},
		{StatusResolved, StatusResolved, true},
		{StatusResolved, StatusInProgress, false},
		{Status("escalated"), StatusInProgress, true},
		{StatusPending, Status("escalated"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUpdateValidate(t *testing.T) {
	assert.NoError(t, Update{Status: StatusResolved, Resolution: "Cleaned"}.Validate(StatusPending))
	assert.NoError(t, Update{Status: StatusInProgress, AssignedTo: "Ravi"}.Validate(StatusPending))
	assert.NoError(t, Update{Resolution: "Updated remark"}.Validate(StatusResolved))

	tests := []struct {
		name    string
		update  Update
		current Status
		field   string
	}{
		{name: "empty", update: Update{}, current: StatusPending, field: "update"},
		{name: "unknown status", update: Update{Status: "Resolved"}, current: StatusPending, field: "status"},
		{name: "backwards", update: Update{Status: StatusInProgress}, current: StatusResolved, field: "status"},
		{name: "resolution while pending", update: Update{Resolution: "done"}, current: StatusPending, field: "resolution"},
		{name: "assignee on resolve", update: Update{Status: StatusResolved, AssignedTo: "Ravi"}, current: StatusInProgress, field: "assignedTo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate(tt.current)
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestApplyUpdate(t *testing.T) {
	orig := Complaint{ID: "c1", Status: StatusPending}

	inProgress := ApplyUpdate(orig, Update{Status: StatusInProgress, AssignedTo: " Ravi "})
	assert.Equal(t, StatusInProgress, inProgress.Status)
	assert.Equal(t, "Ravi", inProgress.AssignedTo)
	assert.Equal(t, StatusPending, orig.Status, "input is not mutated")

	resolved := ApplyUpdate(inProgress, Update{Status: StatusResolved, Resolution: "Fixed at Kota"})
	assert.Equal(t, "Fixed at Kota", resolved.Resolution)
	assert.Empty(t, resolved.AssignedTo)

	reopened := ApplyUpdate(resolved, Update{Status: StatusPending})
	assert.Empty(t, reopened.Resolution)
	assert.Equal(t, StatusPending, reopened.Status)
}
