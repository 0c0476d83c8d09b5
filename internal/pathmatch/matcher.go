// Package pathmatch decides which request paths skip authentication.
package pathmatch

import (
	"fmt"

	"github.com/gobwas/glob"
)

// DefaultAnonymousPaths are used when no anonymous paths are configured
var DefaultAnonymousPaths = []string{
	"/healthz",
	"/healthz/**",
	"/public/**",
	"/static/**",
}

// Matcher is an immutable set of compiled path globs, safe for concurrent use
type Matcher struct {
	exact    map[string]struct{}
	patterns []string
	globs    []glob.Glob
}

// New compiles patterns once. A nil slice selects DefaultAnonymousPaths; any other slice,
// including an empty one, replaces the defaults entirely.
// exact lists paths that always match regardless of patterns.
func New(patterns []string, exact ...string) (*Matcher, error) {
	if patterns == nil {
		patterns = DefaultAnonymousPaths
	}

	m := &Matcher{
		exact:    make(map[string]struct{}, len(exact)),
		patterns: append([]string(nil), patterns...),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for _, p := range exact {
		m.exact[p] = struct{}{}
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid path pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}

	return m, nil
}

// Validate reports the first pattern that does not compile
func Validate(patterns []string) error {
	for _, p := range patterns {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("invalid path pattern %q: %w", p, err)
		}
	}
	return nil
}

// Match reports whether path is exempt
func (m *Matcher) Match(path string) bool {
	if _, ok := m.exact[path]; ok {
		return true
	}
	for _, g := range m.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// Patterns returns the effective glob patterns
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}
