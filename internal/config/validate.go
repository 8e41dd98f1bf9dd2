package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the assembled configuration (file + env overrides).
func Validate(cfg *Config) error {
	validate := validator.New()

	// "owner/repo" shape: exactly one slash, nonempty on both sides.
	_ = validate.RegisterValidation("ownerrepo", func(fl validator.FieldLevel) bool {
		owner, repo, ok := strings.Cut(fl.Field().String(), "/")
		if !ok {
			return false
		}
		return owner != "" && repo != "" && !strings.Contains(repo, "/")
	})

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "trace", "debug", "info", "warn", "warning", "error":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := ParseDurationField(fl.StructFieldName(), fl.Field().String())
		return err == nil
	})

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msg := fmt.Sprintf("%s: rule %q", e.StructNamespace(), e.Tag())
			if e.Param() != "" {
				msg += fmt.Sprintf(" (expected: %s)", e.Param())
			}
			msgs = append(msgs, msg)
		}
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(msgs, "\n  "))
	}
	return fmt.Errorf("config validation error: %w", err)
}
