package validator

import (
	"reflect"
	"strings"

	ierr "coupon-manager/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names so details match the request body
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// GetValidator returns the shared validator instance
func GetValidator() *validator.Validate {
	return validate
}

// Hints maps a failed validation tag to the message shown to the user.
// The entry under "" is used when no tag-specific hint exists.
type Hints map[string]string

// ValidateRequest validates req against its `validate` tags. Failures are
// marked as validation errors with one detail entry per failed field. The
// hint comes from the first failed field (in struct order) that has one.
func ValidateRequest(req interface{}, hints Hints) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	hint := hints[""]
	details := make(map[string]any)

	var validateErrs validator.ValidationErrors
	if ierr.As(err, &validateErrs) {
		picked := false
		for _, fe := range validateErrs {
			details[fe.Field()] = fe.Tag()
			if h, ok := hints[fe.Tag()]; ok && !picked {
				hint = h
				picked = true
			}
		}
	}

	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}
