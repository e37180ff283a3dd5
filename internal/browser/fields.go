// File: internal/browser/fields.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// writeOutcome is the page-side report of a field write.
type writeOutcome struct {
	OK     bool   `json:"ok"`
	Method string `json:"method"`
	Error  string `json:"error"`
}

// Fill writes value into the element behind selector, dispatching on what the
// resolved element actually is rather than on what the config claimed.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	target, err := s.resolveOne(ctx, selector)
	if err != nil {
		return err
	}
	defer s.cleanupTags(ctx)

	script, err := jsCall(`(sel, value) => {
		const W = window.__wmcp;
		const el = W.queryAll(sel)[0];
		if (!el) return { ok: false, error: 'element disappeared' };
		el.scrollIntoView({ block: 'center' });
		const tag = el.tagName;

		if (tag === 'SELECT') {
			let matched = false;
			for (const opt of el.options) {
				if (opt.value === value || W.normText(opt) === value) {
					el.value = opt.value;
					matched = true;
					break;
				}
			}
			if (!matched) return { ok: false, error: 'no option matches value' };
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return { ok: true, method: 'select' };
		}

		if (tag === 'INPUT' && (el.type === 'checkbox' || el.type === 'radio')) {
			return { ok: false, error: 'element is a ' + el.type + ', not a text field' };
		}

		if (tag === 'INPUT' || tag === 'TEXTAREA') {
			el.focus();
			W.nativeSetValue(el, value);
			return { ok: true, method: 'native' };
		}

		const region = W.editableRegion(el);
		if (region) {
			const consumed = W.pasteInto(region, value);
			return { ok: true, method: consumed ? 'paste' : 'insert' };
		}
		return { ok: false, error: 'element is not fillable' };
	}`, target, value)
	if err != nil {
		return err
	}

	var out writeOutcome
	if err := s.eval(ctx, script, &out); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("cannot fill %q: %s", selector, out.Error)
	}
	s.logger.Debug("Field written.",
		zap.String("selector", selector),
		zap.String("method", out.Method))
	return nil
}

// SetChecked toggles a checkbox or selects a radio input. Checking an already
// checked element dispatches no events.
func (s *Session) SetChecked(ctx context.Context, selector string, checked bool) error {
	target, err := s.resolveOne(ctx, selector)
	if err != nil {
		return err
	}
	defer s.cleanupTags(ctx)

	script, err := jsCall(`(sel, checked) => {
		const W = window.__wmcp;
		const el = W.queryAll(sel)[0];
		if (!el) return { ok: false, error: 'element disappeared' };
		if (el.tagName !== 'INPUT' || (el.type !== 'checkbox' && el.type !== 'radio')) {
			return { ok: false, error: 'element is not a checkbox or radio' };
		}
		if (el.type === 'radio' && !checked) {
			return { ok: false, error: 'radio inputs cannot be unchecked directly' };
		}
		if (el.checked === checked) return { ok: true, method: 'noop' };
		el.scrollIntoView({ block: 'center' });
		el.focus();
		const proto = window.HTMLInputElement.prototype;
		const desc = Object.getOwnPropertyDescriptor(proto, 'checked');
		if (desc && desc.set) {
			desc.set.call(el, checked);
		} else {
			el.checked = checked;
		}
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return { ok: true, method: 'native' };
	}`, target, checked)
	if err != nil {
		return err
	}

	var out writeOutcome
	if err := s.eval(ctx, script, &out); err != nil {
		return fmt.Errorf("set checked failed: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("cannot set %q: %s", selector, out.Error)
	}
	return nil
}
