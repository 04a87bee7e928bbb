// internal/validator/validator.go
package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

var ratePattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

func init() {
	Validate = validator.New()

	// rate2dp: plain decimal with at most two fractional digits, e.g. "4.5"
	_ = Validate.RegisterValidation("rate2dp", func(fl validator.FieldLevel) bool {
		return ratePattern.MatchString(fl.Field().String())
	})

	// scopetier: one of the four configurable tiers
	_ = Validate.RegisterValidation("scopetier", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "global", "category", "supplier", "specific":
			return true
		}
		return false
	})

	// notblank: string is not empty and not only whitespace
	_ = Validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(regexp.MustCompile(`\S`).FindString(s)) > 0
	})
}
