package complaint

import "strings"

// Submission is the body of a new complaint.
type Submission struct {
	TrainNumber        string `json:"trainNumber" validate:"required,number"`
	PNRNumber          string `json:"pnrNumber" validate:"required,number,len=10"`
	CoachNumber        string `json:"coachNumber" validate:"required"`
	SeatNumber         string `json:"seatNumber" validate:"required,number"`
	SourceStation      string `json:"sourceStation" validate:"required"`
	DestinationStation string `json:"destinationStation" validate:"required,nefield=SourceStation"`
	Complaint          string `json:"complaint" validate:"required,min=20"`
}

// Normalize returns a copy with every field trimmed.
func (s Submission) Normalize() Submission {
	return Submission{
		TrainNumber:        strings.TrimSpace(s.TrainNumber),
		PNRNumber:          strings.TrimSpace(s.PNRNumber),
		CoachNumber:        strings.TrimSpace(s.CoachNumber),
		SeatNumber:         strings.TrimSpace(s.SeatNumber),
		SourceStation:      strings.TrimSpace(s.SourceStation),
		DestinationStation: strings.TrimSpace(s.DestinationStation),
		Complaint:          strings.TrimSpace(s.Complaint),
	}
}

// Validate checks a normalized copy of s. Every failing field is reported
// in a single *errors.ValidationError.
func (s Submission) Validate() error {
	return toValidationError(validate.Struct(s.Normalize()))
}
