package config

import "time"

// Config represents the complete quill configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Stream   StreamConfig   `yaml:"stream"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig defines SQLite conversation-store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines gateway HTTP server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
	Token  string `yaml:"token"`
}

// UpstreamConfig defines the LLM backend that produces the SSE streams.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Model   string `yaml:"model,omitempty"`
}

// StreamConfig tunes the session controller. The parse-error ceilings and the
// inactivity window are configuration, not constants; validation tolerates
// more noise because its responses are larger.
type StreamConfig struct {
	ChatParseErrorCeiling       int           `yaml:"chat_parse_error_ceiling"`
	ValidationParseErrorCeiling int           `yaml:"validation_parse_error_ceiling"`
	InactivityTimeout           time.Duration `yaml:"inactivity_timeout"`
}
