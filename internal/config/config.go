package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the SceneCraft agent core.
// It is loaded from ~/.scenecraft/config.yaml and can be overridden by
// environment variables (SCENECRAFT_LLM_API_KEY, ...).
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Router  RouterConfig  `mapstructure:"router" yaml:"router"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig contains configuration for the LLM provider endpoint.
type LLMConfig struct {
	// Endpoint is the chat API base URL. The wire dialect is auto-detected
	// from this value and the model name; Dialect overrides the detection.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// APIKey is the authentication key for the provider
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Model is the model identifier sent with every request
	Model string `mapstructure:"model" yaml:"model"`
	// Dialect forces a wire dialect: "anthropic", "openai", or "" for auto
	Dialect string `mapstructure:"dialect" yaml:"dialect,omitempty"`
	// MaxTokens is the per-request completion token limit
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
	// MaxRetries is the number of attempts for retryable failures
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RequestTimeoutSec bounds a single HTTP round trip
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// AgentConfig contains knobs for the orchestration pipeline.
type AgentConfig struct {
	// MaxRoundsSimple bounds the tool-calling loop on the direct path
	MaxRoundsSimple int `mapstructure:"max_rounds_simple" yaml:"max_rounds_simple"`
	// MaxRoundsPerStep bounds the tool-calling loop for one plan step
	MaxRoundsPerStep int `mapstructure:"max_rounds_per_step" yaml:"max_rounds_per_step"`
	// HistoryCharBudget triggers history compaction once the serialized
	// conversation exceeds this many characters
	HistoryCharBudget int `mapstructure:"history_char_budget" yaml:"history_char_budget"`
	// HistoryKeepRecent is the number of trailing messages kept verbatim
	// through compaction
	HistoryKeepRecent int `mapstructure:"history_keep_recent" yaml:"history_keep_recent"`
	// BridgeTimeoutSec bounds one host-thread tool execution
	BridgeTimeoutSec int `mapstructure:"bridge_timeout_sec" yaml:"bridge_timeout_sec"`
	// ResultSummaryMaxChars bounds tool-result summaries fed back to the model
	ResultSummaryMaxChars int `mapstructure:"result_summary_max_chars" yaml:"result_summary_max_chars"`
	// LLMValidation enables the advisory LLM semantic check after plans
	LLMValidation bool `mapstructure:"llm_validation" yaml:"llm_validation"`
}

// RouterConfig contains configuration for the request router.
type RouterConfig struct {
	// RulesPath optionally points to a YAML file of extra keyword rules
	// merged in front of the built-in table
	RulesPath string `mapstructure:"rules_path" yaml:"rules_path,omitempty"`
	// LLMFallback enables the LLM-backed route for low-confidence requests
	LLMFallback bool `mapstructure:"llm_fallback" yaml:"llm_fallback"`
	// ComplexityThreshold is the message length (runes) beyond which a
	// request leans complex
	ComplexityThreshold int `mapstructure:"complexity_threshold" yaml:"complexity_threshold"`
}

// SessionConfig contains configuration for session logging.
type SessionConfig struct {
	// DBPath is the path to the SQLite session store
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	// MetricsPath is the append-only JSON-lines metrics stream
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// EventsConfig contains configuration for the websocket event hub that
// mirrors bridge callbacks to detached observers.
type EventsConfig struct {
	// Enabled determines whether the event hub listens at all
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Bind is the listen address, e.g. "127.0.0.1:8642"
	Bind string `mapstructure:"bind" yaml:"bind"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file (empty disables file logging)
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Endpoint:          "https://api.anthropic.com",
			Model:             "claude-sonnet-4-20250514",
			MaxTokens:         4096,
			MaxRetries:        3,
			RequestTimeoutSec: 120,
		},
		Agent: AgentConfig{
			MaxRoundsSimple:       5,
			MaxRoundsPerStep:      3,
			HistoryCharBudget:     24000,
			HistoryKeepRecent:     8,
			BridgeTimeoutSec:      30,
			ResultSummaryMaxChars: 400,
			LLMValidation:         false,
		},
		Router: RouterConfig{
			LLMFallback:         false,
			ComplexityThreshold: 100,
		},
		Session: SessionConfig{
			DBPath:      "~/.scenecraft/sessions.db",
			MetricsPath: "~/.scenecraft/metrics.jsonl",
		},
		Events: EventsConfig{
			Enabled: false,
			Bind:    "127.0.0.1:8642",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the default location (~/.scenecraft/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".scenecraft", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with
// default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: SCENECRAFT_LLM_API_KEY
	v.SetEnvPrefix("SCENECRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Session.DBPath = expandPath(cfg.Session.DBPath)
	cfg.Session.MetricsPath = expandPath(cfg.Session.MetricsPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.Router.RulesPath = expandPath(cfg.Router.RulesPath)

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in zero values with the defaults. Handles partial
// config files written by hand.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = defaults.LLM.Endpoint
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaults.LLM.Model
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = defaults.LLM.MaxTokens
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = defaults.LLM.MaxRetries
	}
	if c.LLM.RequestTimeoutSec == 0 {
		c.LLM.RequestTimeoutSec = defaults.LLM.RequestTimeoutSec
	}
	if c.Agent.MaxRoundsSimple == 0 {
		c.Agent.MaxRoundsSimple = defaults.Agent.MaxRoundsSimple
	}
	if c.Agent.MaxRoundsPerStep == 0 {
		c.Agent.MaxRoundsPerStep = defaults.Agent.MaxRoundsPerStep
	}
	if c.Agent.HistoryCharBudget == 0 {
		c.Agent.HistoryCharBudget = defaults.Agent.HistoryCharBudget
	}
	if c.Agent.HistoryKeepRecent == 0 {
		c.Agent.HistoryKeepRecent = defaults.Agent.HistoryKeepRecent
	}
	if c.Agent.BridgeTimeoutSec == 0 {
		c.Agent.BridgeTimeoutSec = defaults.Agent.BridgeTimeoutSec
	}
	if c.Agent.ResultSummaryMaxChars == 0 {
		c.Agent.ResultSummaryMaxChars = defaults.Agent.ResultSummaryMaxChars
	}
	if c.Router.ComplexityThreshold == 0 {
		c.Router.ComplexityThreshold = defaults.Router.ComplexityThreshold
	}
	if c.Session.DBPath == "" {
		c.Session.DBPath = expandPath(defaults.Session.DBPath)
	}
	if c.Session.MetricsPath == "" {
		c.Session.MetricsPath = expandPath(defaults.Session.MetricsPath)
	}
	if c.Events.Bind == "" {
		c.Events.Bind = defaults.Events.Bind
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".scenecraft", "config.yaml")
	return c.SaveToPath(configPath)
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// GetDataDir returns the data directory path (~/.scenecraft).
func (c *Config) GetDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".scenecraft")
}

// EnsureDirectories creates all directories the core writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.GetDataDir(),
		filepath.Dir(c.Session.DBPath),
		filepath.Dir(c.Session.MetricsPath),
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model cannot be empty")
	}

	switch c.LLM.Dialect {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("invalid llm.dialect '%s', must be 'anthropic', 'openai', or empty for auto-detection", c.LLM.Dialect)
	}

	if c.LLM.MaxRetries < 1 {
		return fmt.Errorf("llm.max_retries must be at least 1")
	}

	if c.Agent.MaxRoundsSimple < 1 || c.Agent.MaxRoundsPerStep < 1 {
		return fmt.Errorf("agent round limits must be at least 1")
	}

	if c.Agent.HistoryKeepRecent < 2 {
		return fmt.Errorf("agent.history_keep_recent must be at least 2")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
