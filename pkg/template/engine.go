// Package template provides the content-templating collaborators used by the
// CMDB loader. The engines here are deliberately substitution-only: a variable
// tag is replaced by its string form, everything else passes through untouched.
package template

import (
	"fmt"
	"regexp"
)

// Engine renders variable substitutions in a block of text.
type Engine interface {
	// Render replaces every variable tag in text with the matching value
	// from vars. Tags that reference unknown variables are left as-is.
	Render(text string, vars map[string]any) (string, error)
}

// Style selects the tag syntax an engine recognizes.
type Style string

const (
	// StyleMustache recognizes {{ name }} tags.
	StyleMustache Style = "mustache"

	// StyleTT recognizes [% name %] tags (Template-Toolkit style).
	StyleTT Style = "tt"
)

var (
	mustacheTag = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)
	ttTag       = regexp.MustCompile(`\[%\s*([A-Za-z0-9_.]+)\s*%\]`)
)

// New returns the engine for the given style. Unknown styles fall back to
// mustache, which is the default for CMDB sources.
func New(style Style) Engine {
	if style == StyleTT {
		return tagEngine{pattern: ttTag}
	}
	return tagEngine{pattern: mustacheTag}
}

// tagEngine substitutes every tag matched by pattern whose first capture
// group names a variable present in vars.
type tagEngine struct {
	pattern *regexp.Regexp
}

func (e tagEngine) Render(text string, vars map[string]any) (string, error) {
	out := e.pattern.ReplaceAllStringFunc(text, func(tag string) string {
		name := e.pattern.FindStringSubmatch(tag)[1]
		if v, ok := vars[name]; ok {
			return Stringify(v)
		}
		return tag
	})
	return out, nil
}

// Stringify converts a scalar value to its textual form. Strings pass
// through unchanged so quoting is preserved exactly.
func Stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
