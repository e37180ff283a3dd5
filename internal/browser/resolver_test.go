// File: internal/browser/resolver_test.go
package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		want     selectorSpec
	}{
		{
			name:     "plain css passes through",
			selector: "#login > button.primary",
			want:     selectorSpec{Base: "#login > button.primary"},
		},
		{
			name:     "has-text with double quotes",
			selector: `button:has-text("Submit")`,
			want:     selectorSpec{Base: "button", Text: "Submit"},
		},
		{
			name:     "has-text with single quotes",
			selector: `button:has-text('Sign in')`,
			want:     selectorSpec{Base: "button", Text: "Sign in"},
		},
		{
			name:     "has-text with suffix descent",
			selector: `div.card:has-text("Pricing") a.cta`,
			want:     selectorSpec{Base: "div.card", Text: "Pricing", Suffix: "a.cta"},
		},
		{
			name:     "leading and trailing space trimmed",
			selector: `  li:has-text("Done")   span.badge `,
			want:     selectorSpec{Base: "li", Text: "Done", Suffix: "span.badge"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSelector(tt.selector))
		})
	}
}

func TestResolveScriptEncodesSpec(t *testing.T) {
	script, err := resolveScript(`button:has-text("Go")`, true)
	require.NoError(t, err)
	assert.Contains(t, script, `"base":"button"`)
	assert.Contains(t, script, `"text":"Go"`)
	assert.Contains(t, script, "window.__wmcp")
	// The page library must precede the call so evaluation order never matters.
	assert.Less(t, strings.Index(script, "window.__wmcp = W"), strings.LastIndex(script, "resolve"))
}
