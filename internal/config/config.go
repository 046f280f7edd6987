// Package config handles configuration loading for pianalytics.
// It supports YAML config files, a .env file and environment variable
// overrides, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override,
// e.g. PIANALYTICS_API_BASE_URL.
const EnvPrefix = "PIANALYTICS"

// DefaultBaseURL is the analytics API root used when none is configured.
const DefaultBaseURL = "https://pi.crunchdao.com/api"

// DefaultTimeoutSec is the per-request timeout used when none is configured.
const DefaultTimeoutSec = 30

// Config represents the complete application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Output  OutputConfig  `mapstructure:"output"  yaml:"output"`
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"`
}

// APIConfig holds the analytics API client settings.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"         yaml:"base_url"`
	TimeoutSec     int    `mapstructure:"timeout_sec"      yaml:"timeout_sec"` // 0 = no transport timeout
	UserAgent      string `mapstructure:"user_agent"       yaml:"user_agent"`
	StrictPromptID bool   `mapstructure:"strict_prompt_id" yaml:"strict_prompt_id"`
}

// Timeout returns TimeoutSec as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// OutputConfig controls how the CLI prints results.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // "text", "json" or "yaml"
}

// ServerConfig holds settings for the bundled mock API server.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"   yaml:"addr"`   // e.g., "127.0.0.1:8080"
	Prefix string `mapstructure:"prefix" yaml:"prefix"` // path the API is mounted under
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.pianalytics/config.yaml (home directory)
//  3. /etc/pianalytics/config.yaml (system)
//
// A .env file in the working directory is loaded into the environment first;
// variables already set in the process take precedence over it.
// Environment variables override config file values.
// Format: PIANALYTICS_<SECTION>_<KEY>, e.g., PIANALYTICS_API_BASE_URL
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".pianalytics"))
	v.AddConfigPath("/etc/pianalytics")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return unmarshal(v)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.API.TimeoutSec < 0 {
		return fmt.Errorf("api.timeout_sec must not be negative, got %d", c.API.TimeoutSec)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}
	switch strings.ToLower(c.Output.Format) {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("output.format %q is not one of text, json, yaml", c.Output.Format)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout_sec", DefaultTimeoutSec)
	v.SetDefault("api.user_agent", "")
	v.SetDefault("api.strict_prompt_id", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.format", "text")

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.prefix", "/api")
}

// loadDotEnv loads path into the process environment. A missing file is not
// an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
