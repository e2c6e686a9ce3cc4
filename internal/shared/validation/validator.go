package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Seat keys are a row label followed by a seat number, e.g. A1 or AB12.
var (
	seatKeyPattern = regexp.MustCompile(`^[A-Za-z]{1,3}[1-9][0-9]{0,3}$`)
	rowPattern     = regexp.MustCompile(`^[A-Za-z]{1,3}$`)
)

// New returns a validator with the seat ledger rules registered
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("seatkey", func(fl validator.FieldLevel) bool {
		return seatKeyPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("seatrow", func(fl validator.FieldLevel) bool {
		return rowPattern.MatchString(fl.Field().String())
	})
	return v
}

// Describe flattens validator errors into one readable line
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
