// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads CodeBrief settings from defaults, an optional YAML
// file and environment variables, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/CodeBrief/services/llm"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/ratelimit"
)

// FileEnv names the variable holding the YAML config path.
const FileEnv = "CODEBRIEF_CONFIG"

// Counter store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreRedis  = "redis"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	RateLimit ratelimit.Limits `yaml:"rate_limit"`
	Store     StoreConfig      `yaml:"store"`
	LLM       LLMConfig        `yaml:"llm"`
	Scanners  ScannerConfig    `yaml:"scanners"`
	Policies  PolicyConfig     `yaml:"policies"`
	Logging   LoggingConfig    `yaml:"logging"`

	// OTelEndpoint enables OTLP trace export when non-empty.
	OTelEndpoint string `yaml:"otel_endpoint"`
}

type ServerConfig struct {
	Port    int    `yaml:"port"`
	GinMode string `yaml:"gin_mode"`

	// TrustedProxies lets the client key honor X-Forwarded-For from the
	// listed addresses or CIDRs. Empty means the socket peer address.
	TrustedProxies []string `yaml:"trusted_proxies"`

	// ClientKeyHeader keys rate limits by this request header instead of
	// the client address. Only set it behind a gateway that authenticates
	// callers and overwrites the header: otherwise any caller gets fresh
	// quota by changing the value.
	ClientKeyHeader string `yaml:"client_key_header"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EnableMetrics   bool          `yaml:"enable_metrics"`
}

type StoreConfig struct {
	// Backend is memory, badger or redis. Empty selects redis when a
	// Redis host is configured and memory otherwise.
	Backend    string                `yaml:"backend"`
	BadgerPath string                `yaml:"badger_path"`
	Redis      ratelimit.RedisConfig `yaml:"redis"`
}

type LLMConfig struct {
	Backend string        `yaml:"backend"`
	APIKey  string        `yaml:"-"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// UpstreamRPM caps model calls per minute for the whole process.
	UpstreamRPM int `yaml:"upstream_rpm"`
}

type ScannerConfig struct {
	SemgrepPath    string        `yaml:"semgrep_path"`
	BanditPath     string        `yaml:"bandit_path"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxProcesses   int           `yaml:"max_processes"`
	MaxOutputBytes int           `yaml:"max_output_bytes"`
}

type PolicyConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            3001,
			GinMode:         "release",
			ShutdownTimeout: 10 * time.Second,
			EnableMetrics:   true,
		},
		RateLimit: ratelimit.DefaultLimits(),
		Store: StoreConfig{
			BadgerPath: "./data/ratelimit",
			Redis:      ratelimit.RedisConfig{Host: "", Port: 6379},
		},
		LLM: LLMConfig{
			Backend:     string(llm.BackendGemini),
			Timeout:     45 * time.Second,
			UpstreamRPM: 15,
		},
		Scanners: ScannerConfig{
			SemgrepPath:    "semgrep",
			BanditPath:     "bandit",
			Timeout:        60 * time.Second,
			MaxProcesses:   4,
			MaxOutputBytes: 10 << 20,
		},
		Policies: PolicyConfig{Dir: "policies", Watch: true},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load builds the configuration from the process environment.
func Load() (Config, error) {
	return LoadWith(os.Getenv)
}

// LoadWith builds the configuration using getenv for every lookup.
//
// # Description
//
// Starts from Default, overlays the YAML file named by CODEBRIEF_CONFIG when
// set, then applies environment variables. Malformed numeric variables are
// replaced by their defaults with a warning; a malformed YAML file is an
// error.
//
// # Outputs
//
//   - Config: The resolved configuration.
//   - error: Non-nil when the YAML file cannot be read or parsed, or the
//     result fails Validate.
func LoadWith(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(getenv(FileEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		slog.Info("Loaded config file", "path", path)
	}

	applyEnv(&cfg, getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	env := func(name string) (string, bool) {
		v := strings.TrimSpace(getenv(name))
		return v, v != ""
	}
	positive := func(name string, dst *int) {
		if v, ok := env(name); ok {
			*dst = ParsePositiveInt(name, v, *dst)
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := env(name); ok {
			*dst = parseBool(v)
		}
	}
	str := func(name string, dst *string) {
		if v, ok := env(name); ok {
			*dst = v
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := env(name); ok {
			*dst = parseDuration(name, v, *dst)
		}
	}

	positive("PORT", &cfg.Server.Port)
	str("GIN_MODE", &cfg.Server.GinMode)
	if v, ok := env("TRUST_PROXY"); ok {
		if parseBool(v) {
			cfg.Server.TrustedProxies = []string{"0.0.0.0/0", "::/0"}
		} else {
			cfg.Server.TrustedProxies = splitList(v)
		}
	}

	str("CLIENT_KEY_HEADER", &cfg.Server.ClientKeyHeader)

	positive("RATE_LIMIT_MINUTE", &cfg.RateLimit.Minute)
	positive("RATE_LIMIT_DAILY", &cfg.RateLimit.Daily)
	flag("ENABLE_GLOBAL_LIMIT", &cfg.RateLimit.GlobalEnabled)
	positive("GLOBAL_DAILY_LIMIT", &cfg.RateLimit.GlobalDaily)
	flag("RATE_LIMIT_FAIL_OPEN", &cfg.RateLimit.FailOpen)

	str("COUNTER_STORE", &cfg.Store.Backend)
	str("BADGER_PATH", &cfg.Store.BadgerPath)
	str("REDIS_HOST", &cfg.Store.Redis.Host)
	positive("REDIS_PORT", &cfg.Store.Redis.Port)
	str("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	flag("REDIS_TLS", &cfg.Store.Redis.TLS)

	str("LLM_BACKEND", &cfg.LLM.Backend)
	str("LLM_MODEL", &cfg.LLM.Model)
	str("LLM_BASE_URL", &cfg.LLM.BaseURL)
	duration("LLM_TIMEOUT", &cfg.LLM.Timeout)
	positive("LLM_UPSTREAM_RPM", &cfg.LLM.UpstreamRPM)
	cfg.LLM.APIKey = apiKeyFor(cfg.LLM.Backend, getenv)

	str("SEMGREP_PATH", &cfg.Scanners.SemgrepPath)
	str("BANDIT_PATH", &cfg.Scanners.BanditPath)
	duration("SCANNER_TIMEOUT", &cfg.Scanners.Timeout)
	positive("SCANNER_MAX_PROCESSES", &cfg.Scanners.MaxProcesses)

	str("POLICY_DIR", &cfg.Policies.Dir)
	flag("POLICY_WATCH", &cfg.Policies.Watch)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_DIR", &cfg.Logging.Dir)
	flag("LOG_JSON", &cfg.Logging.JSON)

	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTelEndpoint)
}

// apiKeyFor prefers LLM_API_KEY, then the provider's conventional variable.
func apiKeyFor(backend string, getenv func(string) string) string {
	if k := strings.TrimSpace(getenv("LLM_API_KEY")); k != "" {
		return k
	}
	switch llm.Backend(strings.ToLower(backend)) {
	case llm.BackendOpenAI:
		return strings.TrimSpace(getenv("OPENAI_API_KEY"))
	case llm.BackendAnthropic:
		return strings.TrimSpace(getenv("ANTHROPIC_API_KEY"))
	case llm.BackendOllama:
		return ""
	default:
		return strings.TrimSpace(getenv("GEMINI_API_KEY"))
	}
}

// StoreBackend resolves the effective counter store backend.
func (c Config) StoreBackend() string {
	if c.Store.Backend != "" {
		return strings.ToLower(c.Store.Backend)
	}
	if c.Store.Redis.Host != "" {
		return StoreRedis
	}
	return StoreMemory
}

// LLMClientConfig converts to the llm factory configuration.
func (c Config) LLMClientConfig() llm.Config {
	return llm.Config{
		Backend: llm.Backend(strings.ToLower(c.LLM.Backend)),
		APIKey:  c.LLM.APIKey,
		Model:   c.LLM.Model,
		BaseURL: c.LLM.BaseURL,
		Timeout: c.LLM.Timeout,
	}
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	switch c.Server.GinMode {
	case "", "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("unknown gin mode %q", c.Server.GinMode))
	}
	switch c.StoreBackend() {
	case StoreMemory, StoreRedis:
	case StoreBadger:
		if c.Store.BadgerPath == "" {
			errs = append(errs, errors.New("badger store requires a path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown counter store %q", c.Store.Backend))
	}
	if c.RateLimit.Minute < 1 || c.RateLimit.Daily < 1 || c.RateLimit.GlobalDaily < 1 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	return errors.Join(errs...)
}

// =============================================================================
// Parsing Helpers
// =============================================================================

// ParsePositiveInt parses raw as a positive integer, flooring decimals.
// Zero, negatives, infinities and non-numbers yield def with a warning.
func ParsePositiveInt(name, raw string, def int) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v > math.MaxInt32 {
		slog.Warn("Invalid positive integer, using default", "name", name, "value", raw, "default", def)
		return def
	}
	n := int(math.Floor(v))
	if n <= 0 {
		slog.Warn("Invalid positive integer, using default", "name", name, "value", raw, "default", def)
		return def
	}
	return n
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func parseDuration(name, raw string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs := ParsePositiveInt(name, raw, 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
