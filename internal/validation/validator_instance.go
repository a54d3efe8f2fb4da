package validation

import (
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hacknation/dataset-publisher/internal/models"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance configures and returns the shared validator used by every step
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		// report json names so failures carry wire field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		_ = v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
			return IsWebURL(fl.Field().String())
		})

		_ = v.RegisterValidation("licence", func(fl validator.FieldLevel) bool {
			_, ok := models.Licences[fl.Field().String()]
			return ok
		})

		_ = v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseFrequency(fl.Field().String())
			return ok
		})

		validateInst = v
	})

	return validateInst
}

// IsWebURL reports whether s is an absolute http(s) URL with a host
func IsWebURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
