// File: internal/browser/extract.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
)

// Extract reads content from the element(s) behind spec. Text, html and
// attribute modes read the first match; list collects every match; table
// returns the first match's markup rendered as rows of cells.
func (s *Session) Extract(ctx context.Context, spec schemas.ExtractSpec) (string, error) {
	sel := parseSelector(spec.Selector)

	switch spec.Mode {
	case schemas.ExtractList:
		return s.extractList(ctx, sel)
	case schemas.ExtractTable:
		return s.extractTable(ctx, sel)
	case schemas.ExtractHTML:
		return s.extractFirst(ctx, sel, `el.outerHTML`)
	case schemas.ExtractAttribute:
		if spec.Attribute == "" {
			return "", fmt.Errorf("attribute extraction for %q names no attribute", spec.Selector)
		}
		script, err := jsCall(`(spec, attr) => {
			const el = window.__wmcp.resolve(spec, false)[0];
			if (!el) return null;
			return el.getAttribute(attr) || '';
		}`, sel, spec.Attribute)
		if err != nil {
			return "", err
		}
		return s.extractString(ctx, script, spec.Selector)
	default:
		return s.extractFirst(ctx, sel, `window.__wmcp.normText(el)`)
	}
}

// extractFirst evaluates read over the first match, where read references el.
func (s *Session) extractFirst(ctx context.Context, sel selectorSpec, read string) (string, error) {
	script, err := jsCall(fmt.Sprintf(`(spec) => {
		const el = window.__wmcp.resolve(spec, false)[0];
		if (!el) return null;
		return %s;
	}`, read), sel)
	if err != nil {
		return "", err
	}
	return s.extractString(ctx, script, sel.Base)
}

func (s *Session) extractString(ctx context.Context, script, selector string) (string, error) {
	var out *string
	if err := s.eval(ctx, script, &out); err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("no element matches selector %q", selector)
	}
	return *out, nil
}

// extractList collects the normalized text of every match, one per line.
func (s *Session) extractList(ctx context.Context, sel selectorSpec) (string, error) {
	script, err := jsCall(`(spec) => {
		const W = window.__wmcp;
		return W.resolve(spec, true).map(el => W.normText(el));
	}`, sel)
	if err != nil {
		return "", err
	}
	var items []string
	if err := s.eval(ctx, script, &items); err != nil {
		return "", fmt.Errorf("list extraction failed: %w", err)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("no element matches selector %q", sel.Base)
	}
	return strings.Join(items, "\n"), nil
}

// extractTable pulls the first match's markup and flattens it into rows of
// pipe-separated cells. Parsing happens here rather than in the page; the
// page only ships markup.
func (s *Session) extractTable(ctx context.Context, sel selectorSpec) (string, error) {
	markup, err := s.extractFirst(ctx, sel, `el.outerHTML`)
	if err != nil {
		return "", err
	}
	rows, err := parseTableRows(markup)
	if err != nil {
		return "", fmt.Errorf("table extraction failed: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("selector %q matched no table rows", sel.Base)
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, " | "))
	}
	return strings.Join(lines, "\n"), nil
}

// parseTableRows walks a markup fragment collecting tr rows and their th/td
// cell texts in document order.
func parseTableRows(markup string) ([][]string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, collapseWhitespace(nodeText(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
