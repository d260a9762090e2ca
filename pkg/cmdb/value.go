package cmdb

import (
	"strings"

	"github.com/adjust/Rex/pkg/template"
)

// Kind classifies a configuration value for merge dispatch.
// Every value decoded from a source file is exactly one of these.
type Kind int

const (
	// KindScalar covers strings, numbers, booleans and nil.
	KindScalar Kind = iota

	// KindSequence covers ordered lists ([]any).
	KindSequence

	// KindMapping covers string-keyed mappings (map[string]any).
	KindMapping
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "scalar"
	}
}

// KindOf returns the Kind of a decoded configuration value.
func KindOf(v any) Kind {
	switch v.(type) {
	case map[string]any:
		return KindMapping
	case []any:
		return KindSequence
	default:
		return KindScalar
	}
}

// Vars is the flat variable context used for path and content templating.
type Vars map[string]any

// deepCopy clones a configuration tree. Scalars are returned as-is;
// mappings and sequences are rebuilt recursively so the copy shares no
// mutable state with the original.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = deepCopy(val)
		}
		return s
	default:
		return v
	}
}

// resolveDotted descends tree one mapping key per dot-separated segment.
// It reports failure when tree is nil, a segment is missing, or an
// intermediate value is not a mapping.
func resolveDotted(tree map[string]any, dotted string) (any, bool) {
	if tree == nil {
		return nil, false
	}
	var cur any = tree
	for _, seg := range strings.Split(dotted, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// stringify renders a scalar in its path/template form.
func stringify(v any) string {
	return template.Stringify(v)
}
