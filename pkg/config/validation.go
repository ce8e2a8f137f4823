package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.FTP.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Adapters.FTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("adapters.ftp.shutdown_timeout: must be > 0")
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.FTP.Port {
		return fmt.Errorf("server.metrics.port: %d is already used by the FTP adapter", cfg.Server.Metrics.Port)
	}

	switch cfg.Backend.Type {
	case "memory", "badger":
		names := make(map[string]bool)
		for i, user := range cfg.Backend.Users {
			if names[user.Username] {
				return fmt.Errorf("backend.users[%d]: duplicate username %q", i, user.Username)
			}
			names[user.Username] = true

			if _, err := bcrypt.Cost([]byte(user.PasswordHash)); err != nil {
				return fmt.Errorf("backend.users[%d]: password_hash is not a bcrypt hash: %w", i, err)
			}
		}
	default:
		if len(cfg.Backend.Users) > 0 {
			return fmt.Errorf("backend.users: not supported by the %s backend, which authenticates against the service", cfg.Backend.Type)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
