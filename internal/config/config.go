// Package config loads threadfu configuration from file and
// environment. All values are passed explicitly into components at
// construction; nothing in the core reads configuration ambiently.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"threadfu/internal/logger"
)

// envKeyReplacer maps nested keys to env var form:
// service.base_url -> SERVICE_BASE_URL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// ConfigDir is the per-user configuration directory under $HOME.
const ConfigDir = ".threadfu"

// ServiceConfig identifies the remote agent service.
type ServiceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	AgentID    string        `mapstructure:"agent_id"`
	AuthHeader string        `mapstructure:"auth_header"`
	AuthToken  string        `mapstructure:"auth_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Config holds all application settings.
type Config struct {
	Service         ServiceConfig `mapstructure:"service"`
	Transport       string        `mapstructure:"transport"` // poll or stream
	RecursionLimit  int           `mapstructure:"recursion_limit"`
	HistoryPageSize int           `mapstructure:"history_page_size"`
	DebounceWindow  time.Duration `mapstructure:"debounce_window"`
	CachePath       string        `mapstructure:"cache_path"`
	Log             logger.Config `mapstructure:"log"`
}

// DefaultPath returns ~/.threadfu/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, "config.yaml"), nil
}

// Load reads configuration from the given file, with environment
// overrides under the THREADFU prefix (e.g. THREADFU_SERVICE_BASE_URL).
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("THREADFU")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.base_url", "http://localhost:2024")
	v.SetDefault("service.agent_id", "agent")
	v.SetDefault("service.auth_header", "")
	v.SetDefault("service.auth_token", "")
	v.SetDefault("service.timeout", 30*time.Second)
	v.SetDefault("transport", "poll")
	v.SetDefault("recursion_limit", 100)
	v.SetDefault("history_page_size", 30)
	v.SetDefault("debounce_window", 100*time.Millisecond)

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("cache_path", filepath.Join(home, ConfigDir, "cache.db"))

	def := logger.DefaultConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.output", def.Output)
	v.SetDefault("log.file.path", filepath.Join(home, ConfigDir, "threadfu.log"))
	v.SetDefault("log.file.max_size", def.File.MaxSize)
	v.SetDefault("log.file.max_backups", def.File.MaxBackups)
	v.SetDefault("log.file.max_age", def.File.MaxAge)
	v.SetDefault("log.file.compress", def.File.Compress)
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url is required")
	}
	if c.Service.AgentID == "" {
		return fmt.Errorf("service.agent_id is required")
	}
	if c.Transport != "poll" && c.Transport != "stream" {
		return fmt.Errorf("transport must be poll or stream, got %q", c.Transport)
	}
	return nil
}
