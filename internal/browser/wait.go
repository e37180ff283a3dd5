// File: internal/browser/wait.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/Joakim-Sael/webmcp-bridge/internal/engine"
)

// WaitFor polls selector for state on an animation-frame cadence until timeout.
// The poll lives entirely in the page so a navigation tearing down the
// execution context surfaces as an evaluate error rather than a hang. Expiry
// is reported as (false, nil); the caller decides whether that is fatal.
func (s *Session) WaitFor(ctx context.Context, selector string, state engine.WaitState, timeout time.Duration) (bool, error) {
	poll := s.cfg.WaitPollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	spec := parseSelector(selector)
	script, err := jsCall(`(spec, state, timeoutMs, pollMs) => new Promise((resolve) => {
		const W = window.__wmcp;
		const deadline = performance.now() + timeoutMs;
		const satisfied = () => {
			const el = W.resolve(spec, false)[0];
			switch (state) {
			case 'exists':
				return !!el;
			case 'hidden':
				return !el || !W.isVisible(el);
			default:
				return !!el && W.isVisible(el);
			}
		};
		const check = () => {
			if (satisfied()) { resolve(true); return; }
			if (performance.now() >= deadline) { resolve(false); return; }
			// rAF stalls in background tabs; fall back to a coarse timer there.
			if (document.hidden) {
				setTimeout(check, pollMs);
			} else {
				requestAnimationFrame(check);
			}
		};
		check();
	})`, spec, string(state), timeout.Milliseconds(), poll.Milliseconds())
	if err != nil {
		return false, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout+2*time.Second)
	defer cancel()

	var reached bool
	if err := s.eval(waitCtx, script, &reached); err != nil {
		return false, fmt.Errorf("wait on %q failed: %w", selector, err)
	}
	return reached, nil
}

// CheckState reports whether selector currently satisfies state, without
// waiting.
func (s *Session) CheckState(ctx context.Context, selector string, state engine.WaitState) (bool, error) {
	spec := parseSelector(selector)
	script, err := jsCall(`(spec, state) => {
		const W = window.__wmcp;
		const el = W.resolve(spec, false)[0];
		switch (state) {
		case 'exists':
			return !!el;
		case 'hidden':
			return !el || !W.isVisible(el);
		default:
			return !!el && W.isVisible(el);
		}
	}`, spec, string(state))
	if err != nil {
		return false, err
	}
	var ok bool
	if err := s.eval(ctx, script, &ok); err != nil {
		return false, fmt.Errorf("state check on %q failed: %w", selector, err)
	}
	return ok, nil
}
