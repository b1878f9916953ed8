package complaint

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "railmon/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldMessages holds the backend's wording for the checks it also runs.
var fieldMessages = map[string]string{
	"trainNumber":        "Train number must be numeric",
	"pnrNumber":          "PNR must be a 10-digit number",
	"seatNumber":         "Seat number must be numeric",
	"complaint":          "Complaint description must be at least 20 characters",
	"destinationStation": "Source and destination stations cannot be the same",
	"status":             "Invalid status",
}

// toValidationError converts validator output into a ValidationError.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := apperrors.NewValidationError()
	for _, fe := range fieldErrs {
		field := fe.Field()
		if fe.Tag() == "required" {
			verr.Add(field, fmt.Sprintf("%s is required", field))
			continue
		}
		if msg, ok := fieldMessages[field]; ok {
			verr.Add(field, msg)
			continue
		}
		verr.Add(field, fmt.Sprintf("failed %s check", fe.Tag()))
	}
	return verr.OrNil()
}
