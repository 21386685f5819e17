// Package utils holds path-matching helpers shared by workspace discovery
// and lint rules.
package utils

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// PatternMatcher matches slash-separated relative paths against glob
// patterns. "**" spans directories; "*" and "?" do not.
type PatternMatcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewPatternMatcher compiles patterns
func NewPatternMatcher(patterns []string) (*PatternMatcher, error) {
	pm := &PatternMatcher{
		patterns: make([]string, 0, len(patterns)),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for _, pattern := range patterns {
		normalized := NormalizePattern(pattern)
		g, err := glob.Compile(normalized, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		pm.patterns = append(pm.patterns, normalized)
		pm.globs = append(pm.globs, g)
	}
	return pm, nil
}

// Patterns returns the normalized patterns
func (pm *PatternMatcher) Patterns() []string {
	return append([]string(nil), pm.patterns...)
}

// Empty reports whether the matcher has no patterns
func (pm *PatternMatcher) Empty() bool {
	return len(pm.globs) == 0
}

// Match checks if a path matches any pattern. A leading "**/" also matches
// at the root.
func (pm *PatternMatcher) Match(path string) bool {
	path = NormalizePattern(path)
	for _, g := range pm.globs {
		if g.Match(path) || g.Match("/"+path) {
			return true
		}
	}
	return false
}

// MatchAny checks if any of the paths match any pattern
func (pm *PatternMatcher) MatchAny(paths []string) bool {
	for _, path := range paths {
		if pm.Match(path) {
			return true
		}
	}
	return false
}

// GetMatchingPaths returns all paths that match any pattern
func (pm *PatternMatcher) GetMatchingPaths(paths []string) []string {
	var matches []string
	for _, path := range paths {
		if pm.Match(path) {
			matches = append(matches, path)
		}
	}
	return matches
}

// IsGlobPattern checks if a string contains glob wildcards
func IsGlobPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// NormalizePattern normalizes a file pattern or path
func NormalizePattern(pattern string) string {
	pattern = strings.ReplaceAll(filepath.ToSlash(pattern), "\\", "/")
	pattern = strings.TrimPrefix(pattern, "./")
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}

// SplitNegated separates "!"-prefixed exclusions from inclusions, the way
// package.json workspace lists express them
func SplitNegated(patterns []string) (include, exclude []string) {
	for _, p := range patterns {
		if rest, ok := strings.CutPrefix(p, "!"); ok {
			exclude = append(exclude, rest)
			continue
		}
		include = append(include, p)
	}
	return include, exclude
}

// ExclusionMatcher decides which directories a walk skips
type ExclusionMatcher struct {
	patterns []string
	matcher  *PatternMatcher
}

// NewExclusionMatcher creates a new exclusion matcher. A bare name such as
// "node_modules" excludes that directory at any depth.
func NewExclusionMatcher(patterns []string) (*ExclusionMatcher, error) {
	all := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if !IsGlobPattern(pattern) && !strings.Contains(pattern, "/") {
			all = append(all, "**/"+pattern, "**/"+pattern+"/**")
			continue
		}
		all = append(all, pattern)
	}

	matcher, err := NewPatternMatcher(all)
	if err != nil {
		return nil, err
	}
	return &ExclusionMatcher{
		patterns: patterns,
		matcher:  matcher,
	}, nil
}

// IsExcluded checks if a path should be excluded
func (em *ExclusionMatcher) IsExcluded(path string) bool {
	return em.matcher.Match(path)
}

// FilterPaths removes excluded paths from a list
func (em *ExclusionMatcher) FilterPaths(paths []string) []string {
	var filtered []string
	for _, path := range paths {
		if !em.IsExcluded(path) {
			filtered = append(filtered, path)
		}
	}
	return filtered
}

// GetDefaultExclusions returns directories never searched for workspaces
func GetDefaultExclusions() []string {
	return []string{
		".git",
		".hg",
		".svn",
		"node_modules",
		".yarn",
		".pnpm-store",
		"coverage",
		".nyc_output",
		".cache",
		".next",
		".nuxt",
		".turbo",
	}
}

// MatchGlob matches a path against a single glob pattern
func MatchGlob(pattern, path string) (bool, error) {
	matcher, err := NewPatternMatcher([]string{pattern})
	if err != nil {
		return false, err
	}
	return matcher.Match(path), nil
}
