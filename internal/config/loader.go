// Package config loads quill's YAML configuration with environment variable
// interpolation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "quill"
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/quill.db"
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = "127.0.0.1:8070"
	}
	if cfg.Stream.ChatParseErrorCeiling == 0 {
		cfg.Stream.ChatParseErrorCeiling = 10
	}
	if cfg.Stream.ValidationParseErrorCeiling == 0 {
		cfg.Stream.ValidationParseErrorCeiling = 15
	}
	if cfg.Stream.InactivityTimeout == 0 {
		cfg.Stream.InactivityTimeout = 90 * time.Second
	}
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.API.Token == "" {
		return fmt.Errorf("api.token is required")
	}
	if envVarPattern.MatchString(cfg.API.Token) {
		matches := envVarPattern.FindStringSubmatch(cfg.API.Token)
		if len(matches) > 1 {
			return fmt.Errorf("api.token: environment variable ${%s} is not set", matches[1])
		}
	}
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if envVarPattern.MatchString(cfg.Upstream.Token) {
		matches := envVarPattern.FindStringSubmatch(cfg.Upstream.Token)
		if len(matches) > 1 {
			return fmt.Errorf("upstream.token: environment variable ${%s} is not set", matches[1])
		}
	}
	if cfg.Stream.ChatParseErrorCeiling < 0 || cfg.Stream.ValidationParseErrorCeiling < 0 {
		return fmt.Errorf("stream parse error ceilings must be positive")
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}
