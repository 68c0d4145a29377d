// Package config handles configuration loading for finboard.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm" json:"llm"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache" json:"cache"`
	API     APIConfig     `mapstructure:"api" yaml:"api" json:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// LLMConfig holds AI backend configuration.
type LLMConfig struct {
	Driver         string  `mapstructure:"driver" yaml:"driver" json:"driver"` // "http" or "sdk"
	GeminiKey      string  `mapstructure:"gemini_key" yaml:"gemini_key" json:"gemini_key"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Model          string  `mapstructure:"model" yaml:"model" json:"model"`                      // summaries, news, widgets
	DetailModel    string  `mapstructure:"detail_model" yaml:"detail_model" json:"detail_model"` // stock lookup, screener
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	ThinkingBudget int     `mapstructure:"thinking_budget" yaml:"thinking_budget" json:"thinking_budget"` // screener reasoning
	TimeoutSec     int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	RequestsPerMin int     `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"` // 0 = unlimited
}

// CacheConfig holds session cache settings.
type CacheConfig struct {
	Driver          string `mapstructure:"driver" yaml:"driver" json:"driver"` // "memory" or "sqlite"
	SQLitePath      string `mapstructure:"sqlite_path" yaml:"sqlite_path" json:"sqlite_path"`
	DashboardTTLSec int    `mapstructure:"dashboard_ttl_sec" yaml:"dashboard_ttl_sec" json:"dashboard_ttl_sec"`
	StockTTLSec     int    `mapstructure:"stock_ttl_sec" yaml:"stock_ttl_sec" json:"stock_ttl_sec"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host" yaml:"host" json:"host"`
	Port        int      `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`    // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Timeout returns the per-request backend timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// DashboardTTL returns how long the homepage bundle stays fresh.
func (c CacheConfig) DashboardTTL() time.Duration {
	return time.Duration(c.DashboardTTLSec) * time.Second
}

// StockTTL returns how long a single stock lookup stays fresh.
func (c CacheConfig) StockTTL() time.Duration {
	return time.Duration(c.StockTTLSec) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.finboard/config.yaml (home directory)
//  3. /etc/finboard/config.yaml (system)
//
// Environment variables override config file values.
// Format: FINBOARD_<SECTION>_<KEY>, e.g., FINBOARD_LLM_GEMINI_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".finboard"))
	v.AddConfigPath("/etc/finboard")

	v.SetEnvPrefix("FINBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("FINBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.driver", "http")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.detail_model", "gemini-2.5-pro")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.thinking_budget", 8192)
	v.SetDefault("llm.timeout_sec", 180)
	v.SetDefault("llm.requests_per_minute", 0)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.sqlite_path", "file:finboard-session?mode=memory&cache=shared")
	v.SetDefault("cache.dashboard_ttl_sec", 900) // 15 minutes
	v.SetDefault("cache.stock_ttl_sec", 300)     // 5 minutes

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads the backend key from the environment.
// FINBOARD_LLM_GEMINI_KEY wins; GEMINI_API_KEY and API_KEY are accepted so
// existing dashboard deployments keep working.
func overrideFromEnv(cfg *Config) {
	for _, name := range []string{"API_KEY", "GEMINI_API_KEY", "FINBOARD_LLM_GEMINI_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.LLM.GeminiKey = key
		}
	}
}

// Redacted returns a copy of cfg with secrets masked.
func Redacted(cfg *Config) *Config {
	out := *cfg
	if out.LLM.GeminiKey != "" {
		out.LLM.GeminiKey = maskKey(out.LLM.GeminiKey)
	}
	out.API.CORSOrigins = append([]string(nil), cfg.API.CORSOrigins...)
	return &out
}

// Marshal renders cfg as YAML with secrets masked.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(Redacted(cfg))
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return out, nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
