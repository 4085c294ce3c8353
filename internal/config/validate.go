package config

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/prowser-dev/prowser/internal/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names, as users write them.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			d, err := time.ParseDuration(fl.Field().String())
			return err == nil && d >= 0
		})
	})
	return validate
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.New("E102").Wrap(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldMessage(e))
	}
	perr := errors.New("E102").WithDetail(strings.Join(msgs, "; "))
	if c.configPath != "" {
		perr.WithSuggestion("Fix " + c.configPath + " or delete it to use the defaults")
	}
	return perr
}

func fieldMessage(e validator.FieldError) string {
	// Namespace is "Config.serve.port"; drop the root type.
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return field + " is required when " + strings.Fields(e.Param())[0] + " is set"
	case "duration":
		return fmt.Sprintf("%s must be a duration such as \"10s\", got %q", field, e.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "url":
		return field + " must be a URL"
	default:
		return field + " is invalid"
	}
}
