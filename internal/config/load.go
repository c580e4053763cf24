package config

import (
	"fmt"
	"os"
)

// Load reads path, decodes it as an rxh TOML configuration file, and
// validates the result. It is the one entry point cmd/rxh uses before
// building a Master.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg, err := Decode(data)
	if err != nil {
		return Config{}, err
	}

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
