// File: internal/lookup/client.go
package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
	"github.com/Joakim-Sael/webmcp-bridge/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options narrows a lookup request.
type Options struct {
	// ExecutableOnly asks the hub to omit configs whose tools all lack execution bodies.
	ExecutableOnly bool
}

// Client resolves a normalized (domain, path) pair to the configs published for it.
// Failures are returned, never retried; the navigation coordinator decides what a
// failure means.
type Client interface {
	Lookup(ctx context.Context, domain, path string, opts Options) ([]schemas.ToolConfig, error)
}

// SettingsReader supplies the two user-adjustable values read before each lookup.
type SettingsReader interface {
	Get(key string) (string, error)
}

// settingsKeys mirrors the store package constants without importing it.
const (
	keyHubEndpoint = "hub_endpoint"
	keyHubToken    = "hub_token"
)

// HubClient fetches tool configs from the remote hub over HTTP.
type HubClient struct {
	cfg      config.HubConfig
	settings SettingsReader
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewHubClient creates a lookup client. settings may be nil, in which case only
// the static configuration is consulted.
func NewHubClient(cfg config.HubConfig, settings SettingsReader, logger *zap.Logger) *HubClient {
	return &HubClient{
		cfg:      cfg,
		settings: settings,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:   logger.Named("lookup"),
	}
}

// Lookup implements Client against the hub's config endpoint.
func (c *HubClient) Lookup(ctx context.Context, domain, path string, opts Options) ([]schemas.ToolConfig, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("lookup rate limit wait canceled: %w", err)
	}

	endpoint, token := c.resolveSettings()
	if endpoint == "" {
		return nil, fmt.Errorf("no hub endpoint configured")
	}

	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid hub endpoint %q: %w", endpoint, err)
	}
	reqURL = reqURL.JoinPath("configs")
	q := reqURL.Query()
	q.Set("domain", domain)
	q.Set("path", path)
	if opts.ExecutableOnly {
		q.Set("executableOnly", "true")
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The hub has nothing for this domain/path. Not an error.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hub responded %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Configs []schemas.ToolConfig `json:"configs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode hub response: %w", err)
	}

	c.logger.Debug("Hub lookup completed.",
		zap.String("domain", domain),
		zap.String("path", path),
		zap.Int("configs", len(payload.Configs)))
	return payload.Configs, nil
}

// resolveSettings reads the hub endpoint override and bearer credential from the
// settings store, falling back to static configuration. Read on every lookup so a
// settings change takes effect without restart.
func (c *HubClient) resolveSettings() (endpoint, token string) {
	endpoint, token = c.cfg.Endpoint, c.cfg.Token
	if c.settings == nil {
		return endpoint, token
	}
	if v, err := c.settings.Get(keyHubEndpoint); err == nil && v != "" {
		endpoint = v
	}
	if v, err := c.settings.Get(keyHubToken); err == nil && v != "" {
		token = v
	}
	return endpoint, token
}
