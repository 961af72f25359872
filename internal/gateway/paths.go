package gateway

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// PathMatcher matches request paths against Ant-style patterns: "*" matches within one path
// segment and "**" matches across any number of segments.
type PathMatcher struct {
	globs []glob.Glob
}

// NewPathMatcher compiles patterns. Empty patterns are ignored.
func NewPathMatcher(patterns []string) (*PathMatcher, error) {
	m := &PathMatcher{}
	for _, p := range expandPatterns(patterns) {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("gateway: compile path pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether path matches any pattern.
func (m *PathMatcher) Match(path string) bool {
	if m == nil {
		return false
	}
	for _, g := range m.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// expandPatterns trims patterns and adds the bare prefix for every trailing "/**", so that
// "/api/auth/**" also matches "/api/auth".
func expandPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
		if base, ok := strings.CutSuffix(p, "/**"); ok && base != "" {
			out = append(out, base)
		}
	}
	return out
}
