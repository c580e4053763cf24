package config

import (
	"fmt"

	"github.com/rxh-proxy/rxh/internal/validation"
)

// Validate checks a decoded Config against its struct tags plus the
// handful of cross-field rules struct tags can't express (each Action is
// validated as its concrete type, since go-playground/validator doesn't
// look inside an interface{} field on its own).
func Validate(cfg *Config) error {
	if verr := validation.ValidateStruct(cfg); verr != nil {
		return fmt.Errorf("config: %w", verr)
	}

	for si, server := range cfg.Servers {
		for pi, pattern := range server.Patterns {
			if err := validateAction(pattern.Action); err != nil {
				return fmt.Errorf("config: server[%d].patterns[%d]: %w", si, pi, err)
			}
		}
	}
	return nil
}

func validateAction(action Action) error {
	switch a := action.(type) {
	case Forward:
		if verr := validation.ValidateStruct(&a); verr != nil {
			return verr
		}
		for _, b := range a.Backends {
			if verr := validation.ValidateStruct(&b); verr != nil {
				return verr
			}
		}
	case Serve:
		if verr := validation.ValidateStruct(&a); verr != nil {
			return verr
		}
	default:
		return fmt.Errorf("unknown action type %T", action)
	}
	return nil
}
