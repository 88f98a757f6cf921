// Package config loads server configuration from the environment, with an
// optional YAML profile file for deployments that prefer checked-in
// settings over environment variables.
package config

import "os"

// Config holds server configuration.
type Config struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`
	RateRPS     int    `yaml:"rate_rps"`
	RateBurst   int    `yaml:"rate_burst"`
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := defaults()

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	// Empty means no durable journal: the engine runs memory-only.
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	return cfg
}

func defaults() *Config {
	return &Config{
		Port:      "8080",
		LogLevel:  "INFO",
		RateRPS:   50,
		RateBurst: 100,
	}
}
