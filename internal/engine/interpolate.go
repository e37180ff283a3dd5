// File: internal/engine/interpolate.go
package engine

import (
	"fmt"
	"regexp"
	"strings"
)

var paramPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Interpolate substitutes {{name}} placeholders in tpl with the string form of
// the matching parameter. Missing parameters become the empty string.
func Interpolate(tpl string, params map[string]any) string {
	if tpl == "" || !strings.Contains(tpl, "{{") {
		return tpl
	}
	return paramPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		name := paramPattern.FindStringSubmatch(m)[1]
		v, ok := params[name]
		if !ok || v == nil {
			return ""
		}
		return stringify(v)
	})
}

// stringify renders a parameter value the way it should appear in a field or URL.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		// JSON numbers decode as float64; print integers without a fraction.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
