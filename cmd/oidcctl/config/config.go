package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultMaxClockSkew is used when OIDC_MAX_CLOCK_SKEW is not set.
	DefaultMaxClockSkew = time.Minute
)

type Config struct {
	Issuer       string
	ClientID     string
	JWKSURI      string
	SigningAlgs  []string
	MaxClockSkew time.Duration
}

// FromEnvVars loads configuration parameters from environment variables.
// If there is no such variable defined, then use default values.
func FromEnvVars(defaults *Config) (*Config, error) {
	if defaults == nil {
		defaults = &Config{MaxClockSkew: DefaultMaxClockSkew}
	}
	cfg := &Config{
		Issuer:       defaults.Issuer,
		ClientID:     defaults.ClientID,
		JWKSURI:      defaults.JWKSURI,
		SigningAlgs:  defaults.SigningAlgs,
		MaxClockSkew: defaults.MaxClockSkew,
	}
	if value, ok := os.LookupEnv("OIDC_ISSUER"); ok {
		cfg.Issuer = value
	}
	if value, ok := os.LookupEnv("OIDC_CLIENT_ID"); ok {
		cfg.ClientID = value
	}
	if value, ok := os.LookupEnv("OIDC_JWKS_URI"); ok {
		cfg.JWKSURI = value
	}
	if value, ok := os.LookupEnv("OIDC_SIGNING_ALGS"); ok {
		cfg.SigningAlgs = strings.Split(value, ",")
	}
	if value, ok := os.LookupEnv("OIDC_MAX_CLOCK_SKEW"); ok {
		skew, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("OIDC_MAX_CLOCK_SKEW: %w", err)
		}
		cfg.MaxClockSkew = skew
	}
	return cfg, nil
}
