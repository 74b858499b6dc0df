package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

var (
	adminActions     = []string{"override_risk", "whitelist", "mark_false_positive", "block_device"}
	resolveDecisions = []string{"approve", "reject", "complete"}
	fuelLevels       = []string{"FULL", "3/4", "1/2", "1/4", "EMPTY"}
)

// Get returns the shared validator with the domain tags registered
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Report JSON names instead of Go field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("admin_action", oneOfFunc(adminActions))
		_ = validate.RegisterValidation("resolve_decision", oneOfFunc(resolveDecisions))
		_ = validate.RegisterValidation("fuel_level", oneOfFunc(fuelLevels))
	})
	return validate
}

// ValidateStruct validates s and converts field failures into a *ValidationError
func ValidateStruct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationError(verrs)
	}
	return err
}

func oneOfFunc(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	}
}
