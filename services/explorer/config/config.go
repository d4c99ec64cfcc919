// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config provides configuration loading for the explorer.
//
// Configuration is resolved in three layers: compiled defaults, an
// optional YAML file, and EXPLORER_* environment variables, with later
// layers overriding earlier ones. The merged result is validated once
// at load time; a config that passes Load is safe to wire everywhere.
//
// Thread Safety:
//
//	Load and Validate are safe for concurrent use. A Config value is
//	immutable by convention after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/budget"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/prune"
)

// MaxConfigFileSize caps how much YAML Load will read (1MB).
const MaxConfigFileSize = 1024 * 1024

// ErrInvalidConfig wraps every validation failure from this package.
var ErrInvalidConfig = errors.New("invalid configuration")

// validate is the package validator. Initialized in init() with the
// custom relpath rule.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("relpath", validateRelPath)
}

// validateRelPath accepts only repository-relative paths: no absolute
// paths, no parent traversal. Empty strings pass so the rule composes
// with omitempty and required.
func validateRelPath(fl validator.FieldLevel) bool {
	return IsRelPath(fl.Field().String())
}

// IsRelPath reports whether p is a safe repository-relative path.
func IsRelPath(p string) bool {
	if p == "" {
		return true
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return false
	}
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	return true
}

// ValidateStruct runs the package validator over any tagged struct.
// The HTTP handlers use it for request bodies so config and requests
// share one rule set.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// Config is the full explorer configuration.
type Config struct {
	// Root is the project directory to explore.
	Root string `yaml:"root" validate:"required"`

	// IndexPath is where the signature index is persisted. Relative
	// paths resolve against the working directory, not Root.
	IndexPath string `yaml:"index_path" validate:"required"`

	Oracle    OracleConfig    `yaml:"oracle"`
	Budget    BudgetConfig    `yaml:"budget"`
	Limits    LimitsConfig    `yaml:"limits"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// OracleConfig selects and tunes the decision oracle.
type OracleConfig struct {
	// Provider is openai, ollama, or none. With none, every pipeline
	// decision point takes its deterministic fallback.
	Provider string `yaml:"provider" validate:"oneof=openai ollama none"`

	// Model is the model name. Empty keeps the provider default.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	Temperature     float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxAnswerTokens int     `yaml:"max_answer_tokens" validate:"gte=0"`

	// RequestsPerMinute rate-limits oracle calls. Zero disables.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
}

// BudgetConfig sizes the context window math and the hard caps.
type BudgetConfig struct {
	ContextWindow  int     `yaml:"context_window" validate:"gt=0"`
	OutputReserve  int     `yaml:"output_reserve" validate:"gte=0"`
	SafetyFraction float64 `yaml:"safety_fraction" validate:"gt=0,lte=1"`

	// MaxFilesPerPrompt caps trees surviving a prune. Zero disables.
	MaxFilesPerPrompt int `yaml:"max_files_per_prompt" validate:"gte=0"`

	// MaxASTTokens caps estimated tree tokens after a prune.
	MaxASTTokens int `yaml:"max_ast_tokens" validate:"gte=0"`

	// MaxCodeTokens caps loaded code slices by estimated tokens.
	MaxCodeTokens int `yaml:"max_code_tokens" validate:"gte=0"`

	// MaxCodeBytes and MaxCodeFiles cap the slice loader.
	MaxCodeBytes int `yaml:"max_code_bytes" validate:"gte=0"`
	MaxCodeFiles int `yaml:"max_code_files" validate:"gte=0"`
}

// LimitsConfig governs pruning permissions and the loop bound.
type LimitsConfig struct {
	AllowDropAll  bool `yaml:"allow_drop_all"`
	ServerEnforce bool `yaml:"server_enforce"`

	// MaxLoops is accepted for compatibility; the pipeline never runs
	// more than one extra iteration.
	MaxLoops int `yaml:"max_loops" validate:"gte=0"`
}

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	Port       int  `yaml:"port" validate:"gt=0,lte=65535"`
	Debug      bool `yaml:"debug"`
	WatchIndex bool `yaml:"watch_index"`
}

// LoggingConfig tunes the slog stack.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=otlp-grpc stdout none"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

// Default returns the compiled defaults: explore the working
// directory, no oracle, no telemetry, budgets sized for common hosted
// models.
func Default() Config {
	return Config{
		Root:      ".",
		IndexPath: ".explorer/index.json",
		Oracle: OracleConfig{
			Provider:        "none",
			Temperature:     0.1,
			MaxAnswerTokens: 1024,
		},
		Budget: BudgetConfig{
			ContextWindow:     128000,
			OutputReserve:     4096,
			SafetyFraction:    0.9,
			MaxFilesPerPrompt: 8,
			MaxASTTokens:      12000,
			MaxCodeTokens:     8000,
			MaxCodeBytes:      64 * 1024,
			MaxCodeFiles:      8,
		},
		Limits: LimitsConfig{
			AllowDropAll:  true,
			ServerEnforce: true,
			MaxLoops:      1,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
		},
	}
}

// Load resolves the configuration: defaults, then the YAML file at
// file (skipped when file is empty), then EXPLORER_* environment
// variables, then validation.
func Load(file string) (Config, error) {
	cfg := Default()

	if file != "" {
		data, err := readCapped(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", file, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Oracle.Provider == "openai" && cfg.Oracle.APIKeyEnv == "" {
		cfg.Oracle.APIKeyEnv = "OPENAI_API_KEY"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readCapped reads a file while refusing anything over the size cap.
func readCapped(file string) ([]byte, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("file is %d bytes, cap is %d", info.Size(), MaxConfigFileSize)
	}
	return os.ReadFile(file)
}

// Validate checks the merged configuration. Every failure wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Budget.OutputReserve >= c.Budget.ContextWindow {
		return fmt.Errorf("%w: output_reserve %d must be below context_window %d",
			ErrInvalidConfig, c.Budget.OutputReserve, c.Budget.ContextWindow)
	}
	if c.Oracle.Provider == "openai" && c.Oracle.APIKeyEnv == "" {
		return fmt.Errorf("%w: oracle.api_key_env is required for the openai provider", ErrInvalidConfig)
	}
	if c.Oracle.Provider == "ollama" && c.Oracle.Model == "" {
		return fmt.Errorf("%w: oracle.model is required for the ollama provider", ErrInvalidConfig)
	}
	return nil
}

// WindowConfig converts the budget section for the token estimator.
func (c *Config) WindowConfig() budget.WindowConfig {
	return budget.WindowConfig{
		ContextWindow:  c.Budget.ContextWindow,
		OutputReserve:  c.Budget.OutputReserve,
		SafetyFraction: c.Budget.SafetyFraction,
	}
}

// PruneConfig converts the budget and limits sections for the prune
// engine.
func (c *Config) PruneConfig() prune.Config {
	return prune.Config{
		AllowDropAll:      c.Limits.AllowDropAll,
		EnforceLimits:     c.Limits.ServerEnforce,
		MaxFilesPerPrompt: c.Budget.MaxFilesPerPrompt,
		MaxASTTokens:      c.Budget.MaxASTTokens,
		Window:            c.WindowConfig(),
	}
}

// applyEnv overlays EXPLORER_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Root = getEnvString("EXPLORER_ROOT", cfg.Root)
	cfg.IndexPath = getEnvString("EXPLORER_INDEX_PATH", cfg.IndexPath)

	cfg.Oracle.Provider = getEnvString("EXPLORER_ORACLE_PROVIDER", cfg.Oracle.Provider)
	cfg.Oracle.Model = getEnvString("EXPLORER_ORACLE_MODEL", cfg.Oracle.Model)
	cfg.Oracle.BaseURL = getEnvString("EXPLORER_ORACLE_BASE_URL", cfg.Oracle.BaseURL)
	cfg.Oracle.APIKeyEnv = getEnvString("EXPLORER_ORACLE_API_KEY_ENV", cfg.Oracle.APIKeyEnv)
	cfg.Oracle.Temperature = getEnvFloat("EXPLORER_ORACLE_TEMPERATURE", cfg.Oracle.Temperature)
	cfg.Oracle.MaxAnswerTokens = getEnvInt("EXPLORER_ORACLE_MAX_ANSWER_TOKENS", cfg.Oracle.MaxAnswerTokens)
	cfg.Oracle.RequestsPerMinute = getEnvInt("EXPLORER_ORACLE_RPM", cfg.Oracle.RequestsPerMinute)

	cfg.Budget.ContextWindow = getEnvInt("EXPLORER_BUDGET_CONTEXT_WINDOW", cfg.Budget.ContextWindow)
	cfg.Budget.OutputReserve = getEnvInt("EXPLORER_BUDGET_OUTPUT_RESERVE", cfg.Budget.OutputReserve)
	cfg.Budget.SafetyFraction = getEnvFloat("EXPLORER_BUDGET_SAFETY_FRACTION", cfg.Budget.SafetyFraction)
	cfg.Budget.MaxFilesPerPrompt = getEnvInt("EXPLORER_BUDGET_MAX_FILES", cfg.Budget.MaxFilesPerPrompt)
	cfg.Budget.MaxASTTokens = getEnvInt("EXPLORER_BUDGET_MAX_AST_TOKENS", cfg.Budget.MaxASTTokens)
	cfg.Budget.MaxCodeTokens = getEnvInt("EXPLORER_BUDGET_MAX_CODE_TOKENS", cfg.Budget.MaxCodeTokens)
	cfg.Budget.MaxCodeBytes = getEnvInt("EXPLORER_BUDGET_MAX_CODE_BYTES", cfg.Budget.MaxCodeBytes)
	cfg.Budget.MaxCodeFiles = getEnvInt("EXPLORER_BUDGET_MAX_CODE_FILES", cfg.Budget.MaxCodeFiles)

	cfg.Limits.AllowDropAll = getEnvBool("EXPLORER_ALLOW_DROP_ALL", cfg.Limits.AllowDropAll)
	cfg.Limits.ServerEnforce = getEnvBool("EXPLORER_SERVER_ENFORCE", cfg.Limits.ServerEnforce)
	cfg.Limits.MaxLoops = getEnvInt("EXPLORER_MAX_LOOPS", cfg.Limits.MaxLoops)

	cfg.Server.Port = getEnvInt("EXPLORER_PORT", cfg.Server.Port)
	cfg.Server.Debug = getEnvBool("EXPLORER_DEBUG", cfg.Server.Debug)
	cfg.Server.WatchIndex = getEnvBool("EXPLORER_WATCH_INDEX", cfg.Server.WatchIndex)

	cfg.Logging.Level = getEnvString("EXPLORER_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.JSON = getEnvBool("EXPLORER_LOG_JSON", cfg.Logging.JSON)
	cfg.Logging.Dir = getEnvString("EXPLORER_LOG_DIR", cfg.Logging.Dir)

	cfg.Telemetry.TraceExporter = getEnvString("EXPLORER_TRACE_EXPORTER", cfg.Telemetry.TraceExporter)
	cfg.Telemetry.MetricExporter = getEnvString("EXPLORER_METRIC_EXPORTER", cfg.Telemetry.MetricExporter)
	cfg.Telemetry.OTLPEndpoint = getEnvString("EXPLORER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
}

// getEnvString returns an environment variable or defaultVal if unset.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns an environment variable as int, or defaultVal if
// unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvFloat returns an environment variable as float64, or
// defaultVal if unset or invalid.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

// getEnvBool returns an environment variable as bool, or defaultVal
// if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
