package complaint

import (
	"fmt"
	"strings"

	apperrors "railmon/internal/errors"
)

// Update is the admin PUT body. Empty fields are left untouched.
type Update struct {
	Status     Status `json:"status,omitempty" validate:"omitempty,oneof=pending inProgress resolved"`
	Resolution string `json:"resolution,omitempty"`
	AssignedTo string `json:"assignedTo,omitempty"`
}

func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusResolved:
		return 2
	}
	return -1
}

// CanTransition reports whether an admin may move a complaint from one
// status to another. Forward moves are allowed, including pending straight
// to resolved. Any status may be reopened to pending. A complaint carrying
// an unrecognized status may move anywhere.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == to || to == StatusPending || !from.Valid() {
		return true
	}
	return statusRank(to) > statusRank(from)
}

// ValidateFields checks u on its own: something must be set and the status,
// if any, must be canonical.
func (u Update) ValidateFields() error {
	if u.Status == "" && strings.TrimSpace(u.Resolution) == "" && strings.TrimSpace(u.AssignedTo) == "" {
		verr := apperrors.NewValidationError()
		verr.Add("update", "nothing to update")
		return verr
	}
	return toValidationError(validate.Struct(u))
}

// Validate checks u against the complaint's current status.
func (u Update) Validate(current Status) error {
	u.Resolution = strings.TrimSpace(u.Resolution)
	u.AssignedTo = strings.TrimSpace(u.AssignedTo)

	if err := u.ValidateFields(); err != nil {
		return err
	}

	verr := apperrors.NewValidationError()
	target := current
	if u.Status != "" {
		target = u.Status
		if !CanTransition(current, u.Status) {
			verr.Add("status", fmt.Sprintf("cannot move from %s to %s", current.Label(), u.Status.Label()))
		}
	}
	if u.Resolution != "" && target != StatusResolved {
		verr.Add("resolution", "resolution is only allowed on resolved complaints")
	}
	if u.AssignedTo != "" && target != StatusInProgress {
		verr.Add("assignedTo", "assignee is only allowed on in-progress complaints")
	}
	return verr.OrNil()
}

// ApplyUpdate returns a copy of c with u merged in. Leaving resolved clears
// the resolution and leaving inProgress clears the assignee.
func ApplyUpdate(c Complaint, u Update) Complaint {
	if u.Status != "" {
		c.Status = u.Status
	}
	if c.Status != StatusResolved {
		c.Resolution = ""
	}
	if c.Status != StatusInProgress {
		c.AssignedTo = ""
	}
	if r := strings.TrimSpace(u.Resolution); r != "" && c.Status == StatusResolved {
		c.Resolution = r
	}
	if a := strings.TrimSpace(u.AssignedTo); a != "" && c.Status == StatusInProgress {
		c.AssignedTo = a
	}
	return c
}
