package handler

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var mobilePattern = regexp.MustCompile(`^[0-9+\-() ]{7,20}$`)

// newValidator returns a validator that reports fields by their JSON name and knows the
// "mobile" tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	return v
}

// fieldMessages holds the client-facing message per "field.tag".
var fieldMessages = map[string]string{
	"firstName.required":    "First name is mandatory",
	"firstName.max":         "First name must be less than 100 characters",
	"lastName.max":          "Last name must be less than 100 characters",
	"companyName.max":       "Company name must be less than 255 characters",
	"email.required":        "Email is mandatory",
	"email.email":           "Email should be valid",
	"email.max":             "Email must be less than 255 characters",
	"mobileNo.required":     "Mobile number is mandatory",
	"mobileNo.mobile":       "Mobile number must be between 7 to 20 digits",
	"password.required":     "Password is mandatory",
	"password.min":          "Password must be between 8 to 255 characters",
	"password.max":          "Password must be between 8 to 255 characters",
	"refreshToken.required": "Refresh token is required",
	"token.required":        "Reset token is required",
	"newPassword.required":  "New password is mandatory",
	"newPassword.min":       "Password must be between 8 to 255 characters",
	"newPassword.max":       "Password must be between 8 to 255 characters",
}

// fieldErrors converts a validator error into a field-to-message map. It returns nil for any
// other error.
func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
			out[fe.Field()] = msg
			continue
		}
		out[fe.Field()] = fe.Error()
	}
	return out
}
