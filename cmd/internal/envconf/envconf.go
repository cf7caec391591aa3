// Package envconf loads environment-driven config structs and validates them.
//
// Structs declare their sources with caarlos0/env tags and their constraints
// with go-playground/validator tags. In addition to the built-in validators,
// "duration_gt0" requires a strictly positive time.Duration.
package envconf

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the process-wide validator with custom rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("duration_gt0", func(fl validator.FieldLevel) bool {
			d, ok := fl.Field().Interface().(time.Duration)
			return ok && d > 0
		})
		validate = v
	})
	return validate
}

// Load parses environment variables into dst (a pointer to a struct) and
// validates the result.
func Load(dst any) error {
	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return Validate(dst)
}

// Validate runs struct validation and flattens field errors into one message.
func Validate(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("validation: %s", strings.Join(msgs, "; "))
}
