// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Hub     HubConfig     `mapstructure:"hub" yaml:"hub"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	MCP     MCPConfig     `mapstructure:"mcp" yaml:"mcp"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the attached Chromium instance.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// RemoteURL attaches to an already running browser's DevTools endpoint instead
	// of launching one.
	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	// WaitPollInterval is the fallback polling cadence for page-side waits when
	// the page cannot supply animation frames (e.g. a background tab).
	WaitPollInterval time.Duration `mapstructure:"wait_poll_interval" yaml:"wait_poll_interval"`
}

// HubConfig points the lookup client at the remote configuration hub.
type HubConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Token    string        `mapstructure:"token" yaml:"-"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RateLimit caps lookup requests per second against the hub.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// EngineConfig tunes the tool execution engine.
type EngineConfig struct {
	// ClickReadyTimeout bounds the wait for a click target to become visible and enabled.
	ClickReadyTimeout time.Duration `mapstructure:"click_ready_timeout" yaml:"click_ready_timeout"`
	// DefaultWaitTimeout applies to wait steps that do not carry their own bound.
	DefaultWaitTimeout time.Duration `mapstructure:"default_wait_timeout" yaml:"default_wait_timeout"`
	// ResultSettleDelay is the fixed delay before optional result extraction when
	// no result selector is configured.
	ResultSettleDelay time.Duration `mapstructure:"result_settle_delay" yaml:"result_settle_delay"`
}

// MCPConfig configures the tool host surface exposed to agents.
type MCPConfig struct {
	// Transport is "stdio" or "http".
	Transport  string `mapstructure:"transport" yaml:"transport"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	// AtomicReplace selects the atomic replace-all registration path when the host
	// supports it; otherwise the registrar falls back to incremental add/remove.
	AtomicReplace bool `mapstructure:"atomic_replace" yaml:"atomic_replace"`
}

// StoreConfig locates the durable settings database.
type StoreConfig struct {
	// Path is the bbolt database file. Empty resolves to <data_dir>/settings.db.
	Path    string `mapstructure:"path" yaml:"path"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// SettingsPath resolves the settings database location, expanding a leading ~.
func (s StoreConfig) SettingsPath() (string, error) {
	if s.Path != "" {
		return homedir.Expand(s.Path)
	}
	dir, err := homedir.Expand(s.DataDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand data dir: %w", err)
	}
	return filepath.Join(dir, "settings.db"), nil
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Should not happen with defaults alone.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webmcp-bridge")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.wait_poll_interval", "250ms")

	// -- Hub --
	v.SetDefault("hub.endpoint", "")
	v.SetDefault("hub.timeout", "15s")
	v.SetDefault("hub.rate_limit", 2.0)
	v.SetDefault("hub.rate_burst", 4)

	// -- Engine --
	v.SetDefault("engine.click_ready_timeout", "5s")
	v.SetDefault("engine.default_wait_timeout", "5s")
	v.SetDefault("engine.result_settle_delay", "1s")

	// -- MCP --
	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.listen_addr", "127.0.0.1:8711")
	v.SetDefault("mcp.atomic_replace", true)

	// -- Store --
	v.SetDefault("store.path", "")
	v.SetDefault("store.data_dir", "~/.webmcp-bridge")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("hub.token", "WEBMCP_HUB_TOKEN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Hub.RateLimit <= 0 {
		return fmt.Errorf("hub.rate_limit must be positive")
	}
	if c.Hub.Timeout <= 0 {
		return fmt.Errorf("hub.timeout must be a positive duration")
	}
	if c.Engine.ClickReadyTimeout <= 0 {
		return fmt.Errorf("engine.click_ready_timeout must be a positive duration")
	}
	if c.Engine.DefaultWaitTimeout <= 0 {
		return fmt.Errorf("engine.default_wait_timeout must be a positive duration")
	}
	switch c.MCP.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("mcp.transport must be \"stdio\" or \"http\", got %q", c.MCP.Transport)
	}
	return nil
}
