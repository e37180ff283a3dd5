// File: internal/lookup/client_test.go
package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/internal/config"
)

// mapSettings is an in-memory SettingsReader.
type mapSettings map[string]string

func (m mapSettings) Get(key string) (string, error) {
	return m[key], nil
}

func testHubConfig(endpoint string) config.HubConfig {
	return config.HubConfig{
		Endpoint:  endpoint,
		Token:     "static-token",
		Timeout:   5 * time.Second,
		RateLimit: 100,
		RateBurst: 10,
	}
}

func TestLookupRequestShape(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"configs":[{"id":"c1","domain":"example.com","tools":[{"name":"search"}]}]}`))
	}))
	defer srv.Close()

	c := NewHubClient(testHubConfig(srv.URL+"/api/v1"), nil, zap.NewNop())
	configs, err := c.Lookup(context.Background(), "example.com", "/items", Options{ExecutableOnly: true})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/configs", gotPath)
	assert.Contains(t, gotQuery, "domain=example.com")
	assert.Contains(t, gotQuery, "path=%2Fitems")
	assert.Contains(t, gotQuery, "executableOnly=true")
	assert.Equal(t, "Bearer static-token", gotAuth)
	assert.Equal(t, "application/json", gotAccept)

	require.Len(t, configs, 1)
	assert.Equal(t, "c1", configs[0].ID)
	require.Len(t, configs[0].Tools, 1)
	assert.Equal(t, "search", configs[0].Tools[0].Name)
}

func TestLookupNotFoundIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewHubClient(testHubConfig(srv.URL), nil, zap.NewNop())
	configs, err := c.Lookup(context.Background(), "example.com", "/", Options{})
	require.NoError(t, err)
	assert.Nil(t, configs)
}

func TestLookupServerErrorCarriesBodyExcerpt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "hub is on fire", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHubClient(testHubConfig(srv.URL), nil, zap.NewNop())
	_, err := c.Lookup(context.Background(), "example.com", "/", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "hub is on fire")
}

func TestLookupSettingsOverrideStaticConfig(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"configs":[]}`))
	}))
	defer srv.Close()

	// Static config points nowhere; the settings override must win.
	cfg := testHubConfig("http://127.0.0.1:1")
	settings := mapSettings{
		keyHubEndpoint: srv.URL,
		keyHubToken:    "user-token",
	}
	c := NewHubClient(cfg, settings, zap.NewNop())

	configs, err := c.Lookup(context.Background(), "example.com", "/", Options{})
	require.NoError(t, err)
	assert.Empty(t, configs)
	assert.Equal(t, "Bearer user-token", gotAuth)
}

func TestLookupWithoutEndpointFails(t *testing.T) {
	c := NewHubClient(config.HubConfig{Timeout: time.Second, RateLimit: 1, RateBurst: 1}, nil, zap.NewNop())
	_, err := c.Lookup(context.Background(), "example.com", "/", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hub endpoint configured")
}

func TestLookupHonorsContextCancellation(t *testing.T) {
	// Burst 1 with an immediate second call forces a limiter wait the canceled
	// context interrupts.
	cfg := config.HubConfig{Endpoint: "http://127.0.0.1:1", Timeout: time.Second, RateLimit: 0.001, RateBurst: 1}
	c := NewHubClient(cfg, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Lookup(ctx, "example.com", "/", Options{})
	require.Error(t, err)
}
