// File: internal/navigation/coordinator.go
package navigation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
	"github.com/Joakim-Sael/webmcp-bridge/internal/lookup"
)

// Registrar is where resolved config lists land. Apply with an empty list
// clears the tab's tools; Drop forgets a closed tab entirely.
type Registrar interface {
	Apply(ctx context.Context, tabID string, configs []schemas.ToolConfig) error
	Drop(ctx context.Context, tabID string) error
}

// SessionWriter is the slice of the session store the coordinator writes.
type SessionWriter interface {
	PutTabSession(tabID string, entry schemas.TabSession) error
	DeleteTabSession(tabID string)
}

// Coordinator turns tab navigation events into config lookups and tool
// registrations. State is partitioned per tab; one tab's failure never
// touches another's registrations.
type Coordinator struct {
	ctx      context.Context
	states   *TabStates
	client   lookup.Client
	sessions SessionWriter
	reg      Registrar
	logger   *zap.Logger
}

func NewCoordinator(ctx context.Context, client lookup.Client, sessions SessionWriter, reg Registrar, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		ctx:      ctx,
		states:   NewTabStates(),
		client:   client,
		sessions: sessions,
		reg:      reg,
		logger:   logger.Named("navigation"),
	}
}

// OnNavigated handles a committed top-frame navigation. Full-page navigations
// reset dedup state first, so every full load triggers at least one lookup;
// same-document transitions dedup on exact normalized URL equality.
func (c *Coordinator) OnNavigated(tabID, rawURL string, sameDocument bool) {
	domain, path, err := normalizeURL(rawURL)
	if err != nil {
		c.logger.Warn("Ignoring navigation with unusable URL.",
			zap.String("tab_id", tabID),
			zap.String("url", rawURL),
			zap.Error(err))
		return
	}
	key := domain + path

	seq, proceed := c.states.Begin(tabID, key, !sameDocument)
	if !proceed {
		c.logger.Debug("Navigation deduplicated.",
			zap.String("tab_id", tabID),
			zap.String("key", key))
		return
	}

	configs, err := c.client.Lookup(c.ctx, domain, path, lookup.Options{ExecutableOnly: true})
	if err != nil {
		// No retry; the next navigation event is the retry trigger.
		c.logger.Warn("Config lookup failed.",
			zap.String("tab_id", tabID),
			zap.String("domain", domain),
			zap.Error(err))
		return
	}

	if !c.states.Resolve(tabID, seq, domain, len(configs) > 0) {
		c.logger.Debug("Lookup result discarded.",
			zap.String("tab_id", tabID),
			zap.String("domain", domain),
			zap.Uint64("seq", seq),
			zap.Int("configs", len(configs)))
		return
	}

	if err := c.sessions.PutTabSession(tabID, schemas.TabSession{
		Configs:   configs,
		Domain:    domain,
		Timestamp: time.Now(),
	}); err != nil {
		c.logger.Warn("Failed to persist tab session.",
			zap.String("tab_id", tabID),
			zap.Error(err))
	}

	if err := c.reg.Apply(c.ctx, tabID, configs); err != nil {
		c.logger.Warn("Tool registration failed.",
			zap.String("tab_id", tabID),
			zap.String("domain", domain),
			zap.Error(err))
		return
	}
	c.logger.Info("Tools updated for tab.",
		zap.String("tab_id", tabID),
		zap.String("domain", domain),
		zap.Int("configs", len(configs)))
}

// OnTabClosed removes every trace of a closed tab.
func (c *Coordinator) OnTabClosed(tabID string) {
	c.states.Remove(tabID)
	c.sessions.DeleteTabSession(tabID)
	if err := c.reg.Drop(c.ctx, tabID); err != nil {
		c.logger.Warn("Failed to drop tools for closed tab.",
			zap.String("tab_id", tabID),
			zap.Error(err))
	}
	c.logger.Debug("Tab state cleared.", zap.String("tab_id", tabID))
}

// normalizeURL reduces a page URL to its lookup identity: host without a
// leading www. and without a default port, plus the pathname. Query, fragment
// and scheme never participate.
func normalizeURL(rawURL string) (domain, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", "", fmt.Errorf("url %q has no host", rawURL)
	}
	host = strings.TrimPrefix(host, "www.")
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host += ":" + port
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return host, path, nil
}

func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	}
	return false
}
