// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/internal/config"
)

// Session wraps one attached tab (CDP target) and implements the execution
// engine's PageDriver against its live document.
type Session struct {
	tabID  string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	mu       sync.Mutex
	isClosed bool
}

// newSession wraps an existing target context. The manager owns creation.
func newSession(ctx context.Context, cancel context.CancelFunc, tabID string, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	return &Session{
		tabID:  tabID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(zap.String("tab_id", tabID)),
		cfg:    cfg,
	}
}

// TabID returns the CDP target id this session is bound to.
func (s *Session) TabID() string {
	return s.tabID
}

// Close detaches from the tab. Closing an already closed session is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return
	}
	s.isClosed = true
	s.cancel()
}

// run executes chromedp actions under both the session lifetime and the
// caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// eval evaluates a page expression, awaiting promises and returning by value.
func (s *Session) eval(ctx context.Context, expr string, out any) error {
	if out == nil {
		out = new([]byte)
	}
	return s.run(ctx, chromedp.Evaluate(expr, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true).WithReturnByValue(true)
	}))
}

// Navigate points the tab at url. Deliberately not awaited past the navigation
// commit: the step that issued it loses its execution context anyway.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", timeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Scroll brings the selector's first match smoothly into view.
func (s *Session) Scroll(ctx context.Context, selector string) error {
	target, err := s.resolveOne(ctx, selector)
	if err != nil {
		return err
	}
	defer s.cleanupTags(ctx)

	script, err := jsCall(`(sel) => {
		const el = document.querySelector(sel) || window.__wmcp.queryAll(sel)[0];
		if (!el) return false;
		el.scrollIntoView({ behavior: 'smooth', block: 'center' });
		return true;
	}`, target)
	if err != nil {
		return err
	}
	var ok bool
	if err := s.eval(ctx, script, &ok); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("scroll target %q disappeared", selector)
	}
	return nil
}

// Evaluate runs an inline script body from an evaluate step.
func (s *Session) Evaluate(ctx context.Context, script string) error {
	wrapped := fmt.Sprintf("(() => { %s })()", script)
	if err := s.eval(ctx, wrapped, nil); err != nil {
		return fmt.Errorf("inline script failed: %w", err)
	}
	return nil
}

// Sleep pauses without holding the page busy.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// combineContext derives a context canceled when either parent is done.
func combineContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
