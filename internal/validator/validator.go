package validator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/thomiceli/gistapi/internal/content"
)

type GistapiValidator struct {
	v *validator.Validate
}

func NewValidator() *GistapiValidator {
	v := validator.New()
	_ = v.RegisterValidation("alphanumdash", validateAlphaNumDash)
	_ = v.RegisterValidation("regexp", validateRegexp)
	return &GistapiValidator{v}
}

func (cv *GistapiValidator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

func (cv *GistapiValidator) Var(field interface{}, tag string) error {
	return cv.v.Var(field, tag)
}

func ValidationMessages(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	messages := make([]string, len(errs))
	for i, e := range errs {
		switch e.Tag() {
		case "max":
			messages[i] = e.Field() + " is too long"
		case "required":
			messages[i] = e.Field() + " should not be empty"
		case "alphanumdash":
			messages[i] = e.Field() + " should only contain alphanumeric characters and dashes"
		case "regexp":
			messages[i] = e.Field() + " is not a valid regular expression"
		default:
			messages[i] = "Invalid " + e.Field()
		}
	}

	return strings.Join(messages, " ; ")
}

var alphaNumDash = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

func validateAlphaNumDash(fl validator.FieldLevel) bool {
	return alphaNumDash.MatchString(fl.Field().String())
}

func validateRegexp(fl validator.FieldLevel) bool {
	_, err := content.Compile(fl.Field().String())
	return err == nil
}
