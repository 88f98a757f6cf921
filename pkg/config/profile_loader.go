package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadProfile loads a YAML configuration file and overlays it on the
// defaults. Environment variables loaded afterwards still win, so a profile
// is the base layer for a deployment.
func LoadProfile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return cfg, nil
}

// LoadWithProfile loads the profile at path (when non-empty) and then
// applies environment overrides on top of it.
func LoadWithProfile(path string) (*Config, error) {
	base := defaults()
	if path != "" {
		loaded, err := LoadProfile(path)
		if err != nil {
			return nil, err
		}
		base = loaded
	}

	if port := os.Getenv("PORT"); port != "" {
		base.Port = port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		base.LogLevel = level
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		base.DatabaseURL = dbURL
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		base.JWTSecret = secret
	}
	return base, nil
}
