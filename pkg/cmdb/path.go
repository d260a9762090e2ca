package cmdb

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// {name} placeholders filled from the variable context.
	placeholderToken = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

	// [dotted.path] references resolved against already-merged data.
	refToken = regexp.MustCompile(`\[([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*)\]`)
)

// RenderPath substitutes every {name} placeholder in pattern with the
// string form of vars[name]. Placeholders without a matching variable are
// kept verbatim; not every variable is meaningful for every source.
func RenderPath(pattern string, vars Vars) string {
	return placeholderToken.ReplaceAllStringFunc(pattern, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if v, ok := vars[name]; ok {
			return stringify(v)
		}
		return tok
	})
}

// Expand resolves every [dotted.path] reference in pattern against tree
// and returns the concrete candidate paths.
//
// A reference resolving to a scalar is substituted in place. A reference
// resolving to a non-empty sequence branches the working set once per
// element, so several sequence references multiply into the full cross
// product, ordered by first occurrence of each distinct token. A reference
// that cannot be resolved (nil tree, missing segment, mapping result,
// empty sequence) stays in the path as literal text.
//
// The result is never empty: at minimum it holds the pattern itself with
// whatever references could be resolved.
func Expand(pattern string, tree map[string]any) []string {
	paths := []string{pattern}

	seen := make(map[string]bool)
	for _, m := range refToken.FindAllStringSubmatch(pattern, -1) {
		token, dotted := m[0], m[1]
		if seen[token] {
			continue
		}
		seen[token] = true

		v, ok := resolveDotted(tree, dotted)
		if !ok {
			continue
		}
		switch KindOf(v) {
		case KindScalar:
			for i := range paths {
				paths[i] = strings.ReplaceAll(paths[i], token, stringify(v))
			}
		case KindSequence:
			seq := v.([]any)
			if len(seq) == 0 {
				continue
			}
			branched := make([]string, 0, len(paths)*len(seq))
			for _, p := range paths {
				for _, el := range seq {
					branched = append(branched, strings.ReplaceAll(p, token, stringify(el)))
				}
			}
			paths = branched
		case KindMapping:
			// Unusable as path text; the token stays literal.
		}
	}
	return paths
}

// PathStrategy produces the ordered candidate path list for a lookup.
// Earlier entries take precedence over later ones. Exactly one strategy
// is active per CMDB instance, chosen at construction.
type PathStrategy interface {
	candidates(c *CMDB, item, server string) []string
}

// Cascade is the directory+environment strategy: a fixed four-tier list
// from most specific to most general, rooted at Dir.
type Cascade struct {
	// Dir is the base directory holding the CMDB sources.
	Dir string

	// Ext is the source file extension without dot. Empty means "yml".
	Ext string
}

func (s Cascade) candidates(_ *CMDB, _, _ string) []string {
	ext := s.Ext
	if ext == "" {
		ext = "yml"
	}
	return []string{
		filepath.Join(s.Dir, "{environment}", "{server}."+ext),
		filepath.Join(s.Dir, "{environment}", "default."+ext),
		filepath.Join(s.Dir, "{server}."+ext),
		filepath.Join(s.Dir, "default."+ext),
	}
}

// ExplicitPaths is a caller-supplied ordered list of path patterns.
type ExplicitPaths []string

func (s ExplicitPaths) candidates(_ *CMDB, _, _ string) []string {
	return append([]string(nil), s...)
}

// ComputedPaths derives the candidate list at lookup time. The function
// receives the CMDB instance plus the item and server of the lookup.
type ComputedPaths func(c *CMDB, item, server string) []string

func (s ComputedPaths) candidates(c *CMDB, item, server string) []string {
	return s(c, item, server)
}
