// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/internal/config"
)

// NavigationHooks receives tab lifecycle and navigation events from the
// manager. Calls for one tab arrive on a single goroutine in event order and
// may block; the tab's close notification is always the last call.
type NavigationHooks interface {
	// OnNavigated fires for committed top-frame navigations. sameDocument is
	// true for history-state transitions that never tore the page down.
	OnNavigated(tabID, url string, sameDocument bool)

	// OnTabClosed fires once when a tracked tab goes away.
	OnTabClosed(tabID string)
}

// Manager owns the browser connection and one Session per attached page tab.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
	hooks  NavigationHooks

	allocCtx     context.Context
	allocCancel  context.CancelFunc
	browserCtx   context.Context
	browserClose context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
	queues   map[string]*eventQueue
	closed   bool
}

// NewManager builds a manager without touching the browser. Start connects.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.Named("browser"),
		sessions: make(map[string]*Session),
		queues:   make(map[string]*eventQueue),
	}
}

// SetHooks installs the navigation listener. Must be called before Start;
// the coordinator is constructed against this manager, so hooks cannot be a
// constructor argument.
func (m *Manager) SetHooks(hooks NavigationHooks) {
	m.hooks = hooks
}

// Start connects to the browser, attaches to every existing page tab and
// begins tracking tab creation and destruction. The manager shuts down when
// ctx is canceled or Close is called.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.RemoteURL != "" {
		m.allocCtx, m.allocCancel = chromedp.NewRemoteAllocator(ctx, m.cfg.RemoteURL)
	} else {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts, chromedp.Flag("headless", m.cfg.Headless))
		if m.cfg.IgnoreTLSErrors {
			opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
		}
		for _, arg := range m.cfg.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	m.browserCtx, m.browserClose = chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			m.logger.Debug(fmt.Sprintf(format, args...))
		}))

	// Establish the connection before wiring listeners.
	if err := chromedp.Run(m.browserCtx); err != nil {
		m.Close()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	m.listenTargets()

	if err := chromedp.Run(m.browserCtx, target.SetDiscoverTargets(true)); err != nil {
		m.Close()
		return fmt.Errorf("failed to enable target discovery: %w", err)
	}

	// Attach to tabs that already existed before discovery was enabled.
	infos, err := chromedp.Targets(m.browserCtx)
	if err != nil {
		m.Close()
		return fmt.Errorf("failed to list targets: %w", err)
	}
	for _, info := range infos {
		if info.Type == "page" {
			m.attach(info.TargetID, info.URL)
		}
	}

	m.logger.Info("Browser attached.",
		zap.Bool("remote", m.cfg.RemoteURL != ""),
		zap.Int("initial_tabs", len(infos)))
	return nil
}

// Session returns the live session for a tab, or false when the tab is not
// tracked.
func (m *Manager) Session(tabID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[tabID]
	return s, ok
}

// Sessions snapshots the currently tracked sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Close detaches every session and tears down the browser connection.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := m.sessions
	queues := m.queues
	m.sessions = make(map[string]*Session)
	m.queues = make(map[string]*eventQueue)
	m.mu.Unlock()

	for _, q := range queues {
		q.shutdown()
	}
	for _, s := range sessions {
		s.Close()
	}
	if m.browserClose != nil {
		m.browserClose()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser detached.")
}

// attach creates a session for a page target and reports its current URL.
func (m *Manager) attach(id target.ID, url string) {
	tabID := string(id)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if _, exists := m.sessions[tabID]; exists {
		m.mu.Unlock()
		return
	}
	tabCtx, tabCancel := chromedp.NewContext(m.browserCtx, chromedp.WithTargetID(id))
	s := newSession(tabCtx, tabCancel, tabID, m.cfg, m.logger)
	m.sessions[tabID] = s
	var queue *eventQueue
	if m.hooks != nil {
		queue = newEventQueue()
		m.queues[tabID] = queue
		go queue.drain(tabID, m.hooks)
	}
	m.mu.Unlock()

	if err := chromedp.Run(tabCtx, page.Enable()); err != nil {
		m.logger.Warn("Failed to attach to tab.", zap.String("tab_id", tabID), zap.Error(err))
		m.detach(tabID)
		return
	}
	m.listenNavigation(tabCtx, queue)

	m.logger.Debug("Tab attached.", zap.String("tab_id", tabID), zap.String("url", url))
	if url != "" && queue != nil {
		queue.push(tabEvent{url: url})
	}
}

// detach drops a session and queues the close notification behind any
// navigations still waiting for dispatch.
func (m *Manager) detach(tabID string) {
	m.mu.Lock()
	s, ok := m.sessions[tabID]
	queue := m.queues[tabID]
	if ok {
		delete(m.sessions, tabID)
	}
	delete(m.queues, tabID)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	m.logger.Debug("Tab detached.", zap.String("tab_id", tabID))
	if queue != nil {
		queue.push(tabEvent{closed: true})
	}
}
