package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by configuration structs that check their own
// invariants after parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into the provided struct and, when the
// struct implements Validator, validates the result.
//
// Example:
//
//	type Config struct {
//	    Port    int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8088"`
//	    BaseURL string `env:"STOREFRONT_API_BASE_URL" envDefault:"https://ecommerce.routemisr.com/api/v1"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
