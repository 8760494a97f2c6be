package validator

import (
	"reflect"
	"strings"

	"convoydesk/internal/domain/schedule"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := schedule.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("hm", func(fl validator.FieldLevel) bool {
		_, _, err := schedule.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("tz", func(fl validator.FieldLevel) bool {
		_, err := schedule.LoadZone(fl.Field().String())
		return err == nil
	})
}

// Validate struct fields. Keys are json field names, values the failed tag.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errors["_"] = err.Error()
		return errors
	}
	for _, err := range verrs {
		errors[err.Field()] = err.Tag()
	}
	return errors
}
