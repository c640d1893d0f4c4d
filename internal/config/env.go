package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "SOUNDBOARD_"

// parseEnv overlays cfg with SOUNDBOARD_* variables. Unset variables keep the
// current value. A nil environ reads the process environment.
func parseEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
