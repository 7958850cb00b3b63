package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bridge. Loaded once at startup
// and passed explicitly into each component.
type Config struct {
	Port        string
	DatabaseURL string

	OpenAIAPIKey       string
	DefaultModel       string
	DefaultTemperature float64

	// Optional pattern removed from every delta and persisted answer.
	SourceRemoval *regexp.Regexp

	EscalationEndpoint  string
	AppointmentEndpoint string
}

// Load reads configuration from environment variables, loading .env first
// if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		DefaultModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		EscalationEndpoint:  os.Getenv("CUSTOM_FUNCTION_ESCALATION"),
		AppointmentEndpoint: os.Getenv("CUSTOM_FUNCTION_APPOINTMENT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	temp := getEnv("OPENAI_TEMPERATURE", "1")
	t, err := strconv.ParseFloat(temp, 64)
	if err != nil {
		return nil, fmt.Errorf("OPENAI_TEMPERATURE: %w", err)
	}
	cfg.DefaultTemperature = t

	if pattern := os.Getenv("SOURCE_REMOVAL_REGEX"); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("SOURCE_REMOVAL_REGEX: %w", err)
		}
		cfg.SourceRemoval = re
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
