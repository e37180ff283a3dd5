// File: internal/browser/scripts.go
package browser

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// pageLibrary is injected ahead of every evaluation. It gives the engine a
// shadow-tree-aware query primitive plus field-write and event-synthesis
// helpers that survive framework interception.
const pageLibrary = `
(() => {
	if (window.__wmcp) return;
	const W = {};

	// Depth-first walk of the document and every open shadow root.
	W.roots = function() {
		const roots = [document];
		const stack = [document];
		while (stack.length) {
			const root = stack.pop();
			const walker = root.querySelectorAll ? root.querySelectorAll('*') : [];
			for (const el of walker) {
				if (el.shadowRoot) {
					roots.push(el.shadowRoot);
					stack.push(el.shadowRoot);
				}
			}
		}
		return roots;
	};

	W.queryAll = function(selector) {
		const out = [];
		for (const root of W.roots()) {
			try {
				root.querySelectorAll(selector).forEach(el => out.push(el));
			} catch (e) { /* invalid selector for this root */ }
		}
		return out;
	};

	W.normText = function(el) {
		return (el.textContent || '').replace(/\s+/g, ' ').trim();
	};

	// resolve evaluates a parsed selector spec: base selector, optional
	// has-text filter, optional suffix descent. Returns matched elements.
	W.resolve = function(spec, all) {
		let matches = W.queryAll(spec.base);
		if (spec.text) {
			const filtered = matches.filter(el => W.normText(el).includes(spec.text));
			matches = all ? filtered : filtered.slice(0, 1);
		}
		if (spec.suffix) {
			const out = [];
			for (const el of matches) {
				let found = el.querySelectorAll(spec.suffix);
				if (!found.length && el.shadowRoot) {
					found = el.shadowRoot.querySelectorAll(spec.suffix);
				}
				found.forEach(f => out.push(f));
				if (!all && out.length) break;
			}
			matches = out;
		}
		return all ? matches : matches.slice(0, 1);
	};

	// Tag one resolved element with an ephemeral id for follow-up CDP targeting.
	let tagSeq = 0;
	W.tag = function(el) {
		const id = 'wmcp-' + (++tagSeq) + '-' + Date.now().toString(36);
		el.setAttribute('data-wmcp-target', id);
		return id;
	};
	W.untagAll = function() {
		W.queryAll('[data-wmcp-target]').forEach(el => el.removeAttribute('data-wmcp-target'));
	};

	W.isVisible = function(el) {
		const style = window.getComputedStyle(el);
		if (style.visibility === 'hidden' || style.display === 'none' || style.opacity === '0') return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	};

	W.isEnabled = function(el) {
		return !el.disabled && el.getAttribute('aria-disabled') !== 'true';
	};

	W.center = function(el) {
		const rect = el.getBoundingClientRect();
		return { x: rect.left + rect.width / 2, y: rect.top + rect.height / 2 };
	};

	// Synthetic hover-to-click sequence. Boundary events (enter/leave) must not
	// bubble; delegation-based frameworks depend on that semantic.
	W.pointerSequence = function(el) {
		const c = W.center(el);
		const opts = { bubbles: true, cancelable: true, composed: true, clientX: c.x, clientY: c.y, view: window };
		const noBubble = Object.assign({}, opts, { bubbles: false });
		el.dispatchEvent(new PointerEvent('pointerover', opts));
		el.dispatchEvent(new PointerEvent('pointerenter', noBubble));
		el.dispatchEvent(new MouseEvent('mouseover', opts));
		el.dispatchEvent(new MouseEvent('mouseenter', noBubble));
		el.dispatchEvent(new PointerEvent('pointerdown', opts));
		el.dispatchEvent(new MouseEvent('mousedown', opts));
		el.dispatchEvent(new PointerEvent('pointerup', opts));
		el.dispatchEvent(new MouseEvent('mouseup', opts));
		// Native activation: some sites gate handlers on interaction trust, and
		// click() carries activation semantics synthetic dispatch lacks.
		el.click();
		el.dispatchEvent(new PointerEvent('pointerout', opts));
		el.dispatchEvent(new PointerEvent('pointerleave', noBubble));
		el.dispatchEvent(new MouseEvent('mouseout', opts));
		el.dispatchEvent(new MouseEvent('mouseleave', noBubble));
	};

	// Write through the prototype's value setter so framework change detection
	// (React et al. override the instance setter) observes the update.
	W.nativeSetValue = function(el, value) {
		const proto = el.tagName === 'TEXTAREA'
			? window.HTMLTextAreaElement.prototype
			: window.HTMLInputElement.prototype;
		const desc = Object.getOwnPropertyDescriptor(proto, 'value');
		if (desc && desc.set) {
			desc.set.call(el, value);
		} else {
			el.value = value;
		}
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	};

	W.editableRegion = function(el) {
		if (el.isContentEditable && el.getAttribute('contenteditable') !== 'false') return el;
		const inner = el.querySelector('[contenteditable]:not([contenteditable="false"])');
		return inner || null;
	};

	// Paste emulation for rich-text editors: frameworks that own their document
	// model consume the paste event and update internal state, which plain node
	// insertion would bypass. Falls back to direct insertion when nothing
	// intercepts it.
	W.pasteInto = function(region, text) {
		region.focus();
		const sel = window.getSelection();
		sel.removeAllRanges();
		const range = document.createRange();
		range.selectNodeContents(region);
		sel.addRange(range);

		let consumed = false;
		try {
			const dt = new DataTransfer();
			dt.setData('text/plain', text);
			const ev = new ClipboardEvent('paste', { bubbles: true, cancelable: true, clipboardData: dt });
			region.dispatchEvent(ev);
			consumed = ev.defaultPrevented;
		} catch (e) { /* ClipboardEvent constructor unavailable */ }

		if (!consumed) {
			region.textContent = '';
			region.appendChild(document.createTextNode(text));
			const end = document.createRange();
			end.selectNodeContents(region);
			end.collapse(false);
			sel.removeAllRanges();
			sel.addRange(end);
			region.dispatchEvent(new Event('input', { bubbles: true }));
		}
		return consumed;
	};

	window.__wmcp = W;
})();
`

// jsCall builds an expression invoking fn from the page library with the given
// arguments, prefixed by the library itself so evaluation order never matters.
func jsCall(fn string, args ...any) (string, error) {
	encoded := make([]string, 0, len(args))
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode script argument: %w", err)
		}
		encoded = append(encoded, string(raw))
	}
	return fmt.Sprintf("%s\n(%s)(%s)", pageLibrary, fn, strings.Join(encoded, ", ")), nil
}
