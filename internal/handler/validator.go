package handler

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a validator with the request specific rules
// registered: showdate (YYYY-MM-DD), showtime (HH:MM) and seattier.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("showdate", layoutRule("2006-01-02"))
	_ = v.RegisterValidation("showtime", layoutRule("15:04"))
	_ = v.RegisterValidation("seattier", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, ok := model.ParseSeatTier(s)
		return ok
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error { return cv.v.Struct(i) }

func layoutRule(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, err := time.Parse(layout, fl.Field().String())
		return err == nil
	}
}
