// File: internal/browser/resolver.go
package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// selectorSpec is the parsed form of a selector string handed to the page.
// Base is standard CSS; Text carries the :has-text("...") filter; Suffix is the
// optional descendant selector applied after the text match.
type selectorSpec struct {
	Base   string `json:"base"`
	Text   string `json:"text,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// Go's regexp has no backreferences, so the matching-quote requirement is
// expressed as an alternation: exactly one of groups 2 (double) or 3 (single)
// captures the text.
var hasTextPattern = regexp.MustCompile(`^(.*?):has-text\((?:"(.*?)"|'(.*?)')\)\s*(.*)$`)

// parseSelector splits the one non-standard extension out of a selector:
// `base:has-text("text") suffix`. Everything else passes through as Base.
func parseSelector(selector string) selectorSpec {
	m := hasTextPattern.FindStringSubmatch(selector)
	if m == nil {
		return selectorSpec{Base: strings.TrimSpace(selector)}
	}
	text := m[2]
	if text == "" {
		text = m[3]
	}
	return selectorSpec{
		Base:   strings.TrimSpace(m[1]),
		Text:   text,
		Suffix: strings.TrimSpace(m[4]),
	}
}

// resolveScript builds the evaluation that resolves selector and returns the
// ephemeral target ids of the matched elements. The page tags matches with
// data-wmcp-target attributes so later actions can address them through a
// plain attribute query.
func resolveScript(selector string, all bool) (string, error) {
	spec := parseSelector(selector)
	return jsCall(`(spec, all) => {
		const found = window.__wmcp.resolve(spec, all);
		return found.map(el => window.__wmcp.tag(el));
	}`, spec, all)
}

// resolveOne resolves selector to a single element and returns the attribute
// selector addressing it. Returns an error when nothing matches.
func (s *Session) resolveOne(ctx context.Context, selector string) (string, error) {
	script, err := resolveScript(selector, false)
	if err != nil {
		return "", err
	}
	var ids []string
	if err := s.eval(ctx, script, &ids); err != nil {
		return "", fmt.Errorf("selector resolution failed: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no element matches selector %q", selector)
	}
	return fmt.Sprintf(`[data-wmcp-target=%q]`, ids[0]), nil
}

// cleanupTags removes every ephemeral target attribute left by resolution.
// Best effort; stale tags are harmless and replaced on the next resolution.
func (s *Session) cleanupTags(ctx context.Context) {
	script, err := jsCall(`() => { window.__wmcp.untagAll(); }`)
	if err != nil {
		return
	}
	_ = s.eval(ctx, script, nil)
}

// DeclaredToolNames collects the tool names the page itself declares through
// data-mcp-tool attributes. Page-native tools take precedence over remotely
// configured tools of the same name.
func (s *Session) DeclaredToolNames(ctx context.Context) ([]string, error) {
	script, err := jsCall(`() => {
		return window.__wmcp.queryAll('[data-mcp-tool]')
			.map(el => el.getAttribute('data-mcp-tool'))
			.filter(name => name && name.length > 0);
	}`)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := s.eval(ctx, script, &names); err != nil {
		return nil, fmt.Errorf("failed to collect page-declared tools: %w", err)
	}
	return names, nil
}
