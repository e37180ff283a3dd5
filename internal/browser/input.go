// File: internal/browser/input.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// errNotReady marks a target that resolved but never became interactable.
var errNotReady = errors.New("element not ready")

// clickTarget is the page-side readiness report for a click.
type clickTarget struct {
	Ready bool    `json:"ready"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Error string  `json:"error"`
}

// Click waits up to readyTimeout for the target to be visible and enabled,
// scrolls it into view, then synthesizes a trusted activation. Coordinates
// come from the element's live center so overlays and reflows between resolve
// and dispatch still land on the right box.
func (s *Session) Click(ctx context.Context, selector string, readyTimeout time.Duration) error {
	target, err := s.resolveOne(ctx, selector)
	if err != nil {
		return err
	}
	defer s.cleanupTags(ctx)

	ready, err := s.awaitClickable(ctx, target, readyTimeout)
	if err != nil {
		return fmt.Errorf("cannot click %q: %w", selector, err)
	}

	if ready.X > 0 || ready.Y > 0 {
		if err := s.trustedClick(ctx, ready.X, ready.Y); err == nil {
			s.logger.Debug("Clicked element.",
				zap.String("selector", selector),
				zap.String("method", "cdp"))
			return nil
		}
	}

	// Off-viewport or CDP dispatch refused: fall back to the scripted pointer
	// sequence ending in a native activation.
	script, err := jsCall(`(sel) => {
		const W = window.__wmcp;
		const el = W.queryAll(sel)[0];
		if (!el) return false;
		W.pointerSequence(el);
		return true;
	}`, target)
	if err != nil {
		return err
	}
	var ok bool
	if err := s.eval(ctx, script, &ok); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("click target %q disappeared", selector)
	}
	s.logger.Debug("Clicked element.",
		zap.String("selector", selector),
		zap.String("method", "pointer-sequence"))
	return nil
}

// awaitClickable polls on an animation-frame cadence until the tagged element
// is visible and enabled, returning its viewport center.
func (s *Session) awaitClickable(ctx context.Context, target string, timeout time.Duration) (clickTarget, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	script, err := jsCall(`(sel, timeoutMs) => new Promise((resolve) => {
		const W = window.__wmcp;
		const deadline = performance.now() + timeoutMs;
		const check = () => {
			const el = W.queryAll(sel)[0];
			if (el && W.isVisible(el) && W.isEnabled(el)) {
				el.scrollIntoView({ block: 'center' });
				requestAnimationFrame(() => {
					const c = W.center(el);
					resolve({ ready: true, x: c.x, y: c.y });
				});
				return;
			}
			if (performance.now() >= deadline) {
				resolve({ ready: false, error: el ? 'element not interactable' : 'element disappeared' });
				return;
			}
			requestAnimationFrame(check);
		};
		check();
	})`, target, timeout.Milliseconds())
	if err != nil {
		return clickTarget{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout+2*time.Second)
	defer cancel()

	var out clickTarget
	if err := s.eval(waitCtx, script, &out); err != nil {
		return clickTarget{}, fmt.Errorf("readiness check failed: %w", err)
	}
	if !out.Ready {
		return clickTarget{}, fmt.Errorf("%w: %s", errNotReady, out.Error)
	}
	return out, nil
}

// trustedClick drives the browser's own input pipeline so the resulting events
// carry isTrusted.
func (s *Session) trustedClick(ctx context.Context, x, y float64) error {
	return s.run(ctx,
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1),
	)
}

// SubmitEnter submits via the element's enclosing form when it has one, and
// otherwise dispatches a full hardware-grade Enter key sequence on it.
func (s *Session) SubmitEnter(ctx context.Context, selector string) error {
	target, err := s.resolveOne(ctx, selector)
	if err != nil {
		return err
	}
	defer s.cleanupTags(ctx)

	script, err := jsCall(`(sel) => {
		const W = window.__wmcp;
		const el = W.queryAll(sel)[0];
		if (!el) return 'gone';
		el.focus();
		if (el.form && typeof el.form.requestSubmit === 'function') {
			el.form.requestSubmit();
			return 'form';
		}
		return 'key';
	}`, target)
	if err != nil {
		return err
	}
	var mode string
	if err := s.eval(ctx, script, &mode); err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	switch mode {
	case "gone":
		return fmt.Errorf("submit target %q disappeared", selector)
	case "form":
		return nil
	}

	if err := s.run(ctx, s.enterKeySequence()...); err != nil {
		return fmt.Errorf("enter key dispatch failed: %w", err)
	}
	return nil
}

// enterKeySequence mirrors what a physical Enter press produces: rawKeyDown,
// the char event carrying the carriage return, then keyUp.
func (s *Session) enterKeySequence() []chromedp.Action {
	const enterVK = 13
	return []chromedp.Action{
		input.DispatchKeyEvent(input.KeyRawDown).
			WithKey("Enter").
			WithCode("Enter").
			WithWindowsVirtualKeyCode(enterVK).
			WithNativeVirtualKeyCode(enterVK),
		input.DispatchKeyEvent(input.KeyChar).
			WithKey("Enter").
			WithCode("Enter").
			WithText("\r").
			WithUnmodifiedText("\r").
			WithWindowsVirtualKeyCode(enterVK).
			WithNativeVirtualKeyCode(enterVK),
		input.DispatchKeyEvent(input.KeyUp).
			WithKey("Enter").
			WithCode("Enter").
			WithWindowsVirtualKeyCode(enterVK).
			WithNativeVirtualKeyCode(enterVK),
	}
}

// SubmitClick activates a submit control: selector when non-empty, otherwise a
// submit descendant of container's form, otherwise container itself.
func (s *Session) SubmitClick(ctx context.Context, selector, container string) error {
	if selector != "" {
		return s.Click(ctx, selector, 0)
	}
	if container == "" {
		return errors.New("no submit selector and no filled field to anchor on")
	}

	target, err := s.resolveOne(ctx, container)
	if err != nil {
		return err
	}
	script, err := jsCall(`(sel) => {
		const W = window.__wmcp;
		const el = W.queryAll(sel)[0];
		if (!el) return null;
		const scope = el.form || el.closest('form') || document;
		const btn = scope.querySelector('button[type="submit"], input[type="submit"], button:not([type])');
		return btn ? W.tag(btn) : W.tag(el);
	}`, target)
	if err != nil {
		s.cleanupTags(ctx)
		return err
	}
	var id string
	if err := s.eval(ctx, script, &id); err != nil {
		s.cleanupTags(ctx)
		return fmt.Errorf("submit control discovery failed: %w", err)
	}
	defer s.cleanupTags(ctx)
	if id == "" {
		return fmt.Errorf("no submit control found near %q", container)
	}
	return s.Click(ctx, fmt.Sprintf("[data-wmcp-target=%q]", id), 0)
}
