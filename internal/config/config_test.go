// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "webmcp-bridge", cfg.Logger.ServiceName)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Browser.WaitPollInterval)
	assert.Equal(t, 15*time.Second, cfg.Hub.Timeout)
	assert.Equal(t, 2.0, cfg.Hub.RateLimit)
	assert.Equal(t, 5*time.Second, cfg.Engine.ClickReadyTimeout)
	assert.Equal(t, "stdio", cfg.MCP.Transport)
	assert.True(t, cfg.MCP.AtomicReplace)
	assert.Equal(t, "~/.webmcp-bridge", cfg.Store.DataDir)
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, NewDefaultConfig().Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	base := NewDefaultConfig()

	t.Run("rejects non-positive rate limit", func(t *testing.T) {
		cfg := *base
		cfg.Hub.RateLimit = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hub.rate_limit")
	})

	t.Run("rejects non-positive hub timeout", func(t *testing.T) {
		cfg := *base
		cfg.Hub.Timeout = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hub.timeout")
	})

	t.Run("rejects zero click ready timeout", func(t *testing.T) {
		cfg := *base
		cfg.Engine.ClickReadyTimeout = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine.click_ready_timeout")
	})

	t.Run("rejects unknown transport", func(t *testing.T) {
		cfg := *base
		cfg.MCP.Transport = "carrier-pigeon"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mcp.transport")
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")

	yamlConfig := []byte(`
logger:
  level: debug
browser:
  remote_url: ws://127.0.0.1:9222/devtools/browser/abc
  navigation_timeout: 30s
hub:
  endpoint: https://hub.example/api
engine:
  default_wait_timeout: 2s
mcp:
  transport: http
  listen_addr: 127.0.0.1:9000
`)
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.RemoteURL)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "https://hub.example/api", cfg.Hub.Endpoint)
	assert.Equal(t, 2*time.Second, cfg.Engine.DefaultWaitTimeout)
	assert.Equal(t, "http", cfg.MCP.Transport)
	// Untouched values keep their defaults.
	assert.Equal(t, 2.0, cfg.Hub.RateLimit)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("mcp.transport", "smoke-signal")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

// -- Path Resolution Tests --

func TestSettingsPath(t *testing.T) {
	t.Run("explicit path wins", func(t *testing.T) {
		s := StoreConfig{Path: "/tmp/custom.db", DataDir: "/ignored"}
		path, err := s.SettingsPath()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/custom.db", path)
	})

	t.Run("data dir fallback", func(t *testing.T) {
		s := StoreConfig{DataDir: "/var/lib/webmcp"}
		path, err := s.SettingsPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/var/lib/webmcp", "settings.db"), path)
	})

	t.Run("tilde expands", func(t *testing.T) {
		s := StoreConfig{DataDir: "~/.webmcp-bridge"}
		path, err := s.SettingsPath()
		require.NoError(t, err)
		assert.NotContains(t, path, "~")
		assert.Contains(t, path, "settings.db")
	})
}
