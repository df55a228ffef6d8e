package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Validate when no credential is configured
// for the selected provider.
var ErrMissingAPIKey = errors.New("no API key configured for the model provider")

type Config struct {
	// Server
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"`
	APIPrefix   string `json:"api_prefix" yaml:"api_prefix"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header" yaml:"api_key_header"`
	APIKeys      []string `json:"api_keys" yaml:"api_keys"`
	EnableAuth   bool     `json:"enable_auth" yaml:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// Model
	Provider         string `json:"provider" yaml:"provider"`
	AnthropicAPIKey  string `json:"anthropic_api_key" yaml:"anthropic_api_key"`
	AnthropicBaseURL string `json:"anthropic_base_url" yaml:"anthropic_base_url"` // override for compatible proxies
	OpenAIAPIKey     string `json:"openai_api_key" yaml:"openai_api_key"`
	OpenAIBaseURL    string `json:"openai_base_url" yaml:"openai_base_url"`
	Model            string `json:"model" yaml:"model"`
	MaxTokens        int    `json:"max_tokens" yaml:"max_tokens"`
	SystemPrompt     string `json:"system_prompt" yaml:"system_prompt"`

	// Agent loop
	MaxIterations int    `json:"max_iterations" yaml:"max_iterations"`
	DispatchMode  string `json:"dispatch_mode" yaml:"dispatch_mode"`
	ModelTimeout  int    `json:"model_timeout" yaml:"model_timeout"` // seconds, 0 disables
	ToolTimeout   int    `json:"tool_timeout" yaml:"tool_timeout"`   // seconds, 0 disables
	AgentTimeout  int    `json:"agent_timeout" yaml:"agent_timeout"` // seconds, per HTTP chat request

	// Tools
	WorkDir         string   `json:"work_dir" yaml:"work_dir"`
	EnableShell     bool     `json:"enable_shell" yaml:"enable_shell"`
	BlockedCommands []string `json:"blocked_commands" yaml:"blocked_commands"`
	HTTPGetLimit    int      `json:"http_get_limit" yaml:"http_get_limit"`
	HTTPGetTimeout  int      `json:"http_get_timeout" yaml:"http_get_timeout"`

	// Security
	EnableDataMasking  bool     `json:"enable_data_masking" yaml:"enable_data_masking"`
	EnablePIIDetection bool     `json:"enable_pii_detection" yaml:"enable_pii_detection"`
	SensitiveColumns   []string `json:"sensitive_columns" yaml:"sensitive_columns"`
	PIIKeywords        []string `json:"pii_keywords" yaml:"pii_keywords"`
	EnableAuditLogging bool     `json:"enable_audit_logging" yaml:"enable_audit_logging"`
	MaxPromptLength    int      `json:"max_prompt_length" yaml:"max_prompt_length"`

	// Cost tracking (USD per million tokens)
	EnableCostTracking bool    `json:"enable_cost_tracking" yaml:"enable_cost_tracking"`
	InputPricePerMTok  float64 `json:"input_price_per_mtok" yaml:"input_price_per_mtok"`
	OutputPricePerMTok float64 `json:"output_price_per_mtok" yaml:"output_price_per_mtok"`

	// PostgreSQL
	DatabaseURL      string `json:"database_url" yaml:"database_url"`
	DatabaseMaxConns int    `json:"database_max_conns" yaml:"database_max_conns"`
	MaxQueryRows     int    `json:"max_query_rows" yaml:"max_query_rows"`

	// Elasticsearch
	ElasticsearchEnabled     bool   `json:"elasticsearch_enabled" yaml:"elasticsearch_enabled"`
	ElasticsearchHost        string `json:"elasticsearch_host" yaml:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port" yaml:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme" yaml:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user" yaml:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password" yaml:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs" yaml:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries" yaml:"elasticsearch_max_retries"`
	ElasticsearchTimeout     int    `json:"elasticsearch_timeout" yaml:"elasticsearch_timeout"`

	// Elasticsearch Index Patterns
	ESAllowedPatterns []string `json:"es_allowed_patterns" yaml:"es_allowed_patterns"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              clone(DefaultCORSOrigins),
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               true,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		Provider:                 DefaultProvider,
		MaxTokens:                DefaultMaxTokens,
		MaxIterations:            DefaultMaxIterations,
		DispatchMode:             DefaultDispatchMode,
		ModelTimeout:             DefaultModelTimeout,
		ToolTimeout:              DefaultToolTimeout,
		AgentTimeout:             DefaultAgentTimeout,
		EnableShell:              true,
		HTTPGetLimit:             DefaultHTTPGetLimit,
		HTTPGetTimeout:           DefaultHTTPGetTimeout,
		EnableDataMasking:        true,
		EnablePIIDetection:       true,
		SensitiveColumns:         clone(DefaultSensitiveColumns),
		PIIKeywords:              clone(DefaultPIIKeywords),
		EnableAuditLogging:       true,
		MaxPromptLength:          DefaultMaxPromptLength,
		EnableCostTracking:       true,
		InputPricePerMTok:        DefaultInputPricePerMTok,
		OutputPricePerMTok:       DefaultOutputPricePerMTok,
		DatabaseMaxConns:         DefaultDatabaseMaxConns,
		MaxQueryRows:             DefaultMaxQueryRows,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ElasticsearchTimeout:     DefaultElasticsearchTimeout,
		ESAllowedPatterns:        clone(DefaultESAllowedPatterns),
	}
}

// Load builds the configuration from defaults, the file named by
// TOOLLOOP_CONFIG (JSON or YAML) and environment overrides, in that order.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path falls back to
// TOOLLOOP_CONFIG.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getEnv("TOOLLOOP_CONFIG", "")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("TOOLLOOP_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("TOOLLOOP_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("TOOLLOOP_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("TOOLLOOP_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("TOOLLOOP_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("TOOLLOOP_PROVIDER", ""); v != "" {
		cfg.Provider = v
	}
	if v := getEnv("TOOLLOOP_MODEL", ""); v != "" {
		cfg.Model = v
	}
	if v := getEnv("TOOLLOOP_MAX_ITERATIONS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = n
		}
	}
	if v := getEnv("TOOLLOOP_DISPATCH_MODE", ""); v != "" {
		cfg.DispatchMode = v
	}
	if v := getEnv("TOOLLOOP_WORK_DIR", ""); v != "" {
		cfg.WorkDir = v
	}
	if v := getEnv("TOOLLOOP_ENABLE_SHELL", ""); v != "" {
		cfg.EnableShell = v == "true" || v == "1"
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("OPENAI_API_KEY", ""); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := getEnv("OPENAI_BASE_URL", ""); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := getEnv("DATABASE_URL", ""); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getEnv("ELASTICSEARCH_ENABLED", ""); v != "" {
		cfg.ElasticsearchEnabled = v == "true" || v == "1"
	}
	if v := getEnv("ELASTICSEARCH_HOST", ""); v != "" {
		cfg.ElasticsearchHost = v
	}
	if v := getEnv("ELASTICSEARCH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ElasticsearchPort = p
		}
	}
	if v := getEnv("ELASTICSEARCH_SCHEME", ""); v != "" {
		cfg.ElasticsearchScheme = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
}

// APIKey returns the credential of the selected provider.
func (c *Config) APIKey() string {
	if strings.EqualFold(c.Provider, "openai") {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

// SetAPIKey stores key as the credential of the selected provider.
func (c *Config) SetAPIKey(key string) {
	if strings.EqualFold(c.Provider, "openai") {
		c.OpenAIAPIKey = key
		return
	}
	c.AnthropicAPIKey = key
}

// BaseURL returns the endpoint override of the selected provider.
func (c *Config) BaseURL() string {
	if strings.EqualFold(c.Provider, "openai") {
		return c.OpenAIBaseURL
	}
	return c.AnthropicBaseURL
}

func (c *Config) ModelTimeoutDuration() time.Duration {
	return time.Duration(c.ModelTimeout) * time.Second
}

func (c *Config) ToolTimeoutDuration() time.Duration {
	return time.Duration(c.ToolTimeout) * time.Second
}

func (c *Config) AgentTimeoutDuration() time.Duration {
	return time.Duration(c.AgentTimeout) * time.Second
}

// Validate reports configuration that would make startup fail later.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Provider) {
	case "anthropic", "openai":
	default:
		errs = append(errs, fmt.Errorf("provider must be \"anthropic\" or \"openai\", got %q", c.Provider))
	}
	if strings.TrimSpace(c.APIKey()) == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations))
	}
	switch c.DispatchMode {
	case "", "all", "first":
	default:
		errs = append(errs, fmt.Errorf("dispatch_mode must be \"all\" or \"first\", got %q", c.DispatchMode))
	}
	if c.ModelTimeout < 0 || c.ToolTimeout < 0 || c.AgentTimeout < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.ElasticsearchEnabled && c.ElasticsearchHost == "" {
		errs = append(errs, errors.New("elasticsearch_host is required when elasticsearch is enabled"))
	}
	return errors.Join(errs...)
}

func clone(in []string) []string {
	return append([]string(nil), in...)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
