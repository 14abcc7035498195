// Package config loads gateway settings from an optional YAML file and
// BRIEF_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is read when no config file is named; it may be absent.
const DefaultPath = "config.yaml"

const envPrefix = "BRIEF_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Prompt    PromptConfig    `koanf:"prompt"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ClientIPHeader  string        `koanf:"client_ip_header"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type RateLimitConfig struct {
	Capacity      int           `koanf:"capacity"`
	Window        time.Duration `koanf:"window"`
	MaxIdentities int           `koanf:"max_identities"`
}

type UpstreamConfig struct {
	BaseURL              string  `koanf:"base_url"`
	APIKey               string  `koanf:"api_key"`
	Model                string  `koanf:"model"`
	MaxTokens            int     `koanf:"max_tokens"`
	Temperature          float32 `koanf:"temperature"`
	MaxPromptTokens      int     `koanf:"max_prompt_tokens"`
	DenyPrivateAddresses bool    `koanf:"deny_private_addresses"`
}

type PromptConfig struct {
	Language string `koanf:"language"`
}

type TelemetryConfig struct {
	Exporter    string `koanf:"exporter"`
	ServiceName string `koanf:"service_name"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// DefaultAllowedOrigins is the CORS allow-list used when none is configured.
// The first entry is the fallback origin for requests from elsewhere.
var DefaultAllowedOrigins = []string{
	"https://biladesigns.com",
	"https://www.biladesigns.com",
	"http://localhost:8000",
	"http://127.0.0.1:8000",
}

var defaults = map[string]any{
	"server.port":                     8080,
	"server.client_ip_header":         "CF-Connecting-IP",
	"server.max_body_bytes":           64 << 10,
	"server.shutdown_timeout":         "30s",
	"cors.allowed_origins":            DefaultAllowedOrigins,
	"ratelimit.capacity":              10,
	"ratelimit.window":                "60s",
	"ratelimit.max_identities":        10000,
	"upstream.base_url":               "https://api.openai.com/v1",
	"upstream.api_key":                "${OPENAI_API_KEY}",
	"upstream.model":                  "gpt-4o-mini",
	"upstream.max_tokens":             500,
	"upstream.temperature":            0.7,
	"upstream.max_prompt_tokens":      0,
	"upstream.deny_private_addresses": false,
	"prompt.language":                 "French",
	"telemetry.exporter":              "none",
	"telemetry.service_name":          "brief-gateway",
	"metrics.addr":                    ":9090",
	"log.level":                       "info",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), then environment overrides such
// as BRIEF_RATELIMIT__CAPACITY, then fills unset keys with defaults. A missing
// DefaultPath is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	optional := path == ""
	if optional {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Upstream.APIKey = substituteEnvVars(cfg.Upstream.APIKey)
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)

	return &cfg, nil
}

// ConfigurationError reports settings the gateway cannot start with.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the settings needed to serve traffic.
func (c *Config) Validate() error {
	var problems []string
	if c.Upstream.APIKey == "" {
		problems = append(problems, "upstream.api_key is required (set OPENAI_API_KEY)")
	}
	if c.Upstream.BaseURL == "" {
		problems = append(problems, "upstream.base_url is required")
	}
	if c.RateLimit.Capacity < 1 {
		problems = append(problems, "ratelimit.capacity must be at least 1")
	}
	if c.RateLimit.Window <= 0 {
		problems = append(problems, "ratelimit.window must be positive")
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		problems = append(problems, "cors.allowed_origins must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		problems = append(problems, "server.max_body_bytes must be positive")
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// splitList expands comma-separated entries, which is how list values arrive
// from environment variables.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
