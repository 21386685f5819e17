package utils_test

import (
	"reflect"
	"testing"

	"github.com/smoker/smoker/pkg/utils"
)

func TestPatternMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{
			name:     "single level wildcard",
			patterns: []string{"packages/*"},
			path:     "packages/foo",
			want:     true,
		},
		{
			name:     "single level wildcard does not cross directories",
			patterns: []string{"packages/*"},
			path:     "packages/foo/bar",
			want:     false,
		},
		{
			name:     "double wildcard",
			patterns: []string{"packages/**"},
			path:     "packages/scope/foo",
			want:     true,
		},
		{
			name:     "double wildcard root",
			patterns: []string{"**/*.pem"},
			path:     "server.pem",
			want:     true,
		},
		{
			name:     "leading dot slash",
			patterns: []string{"./packages/*"},
			path:     "./packages/foo",
			want:     true,
		},
		{
			name:     "question mark",
			patterns: []string{"pkg-?"},
			path:     "pkg-a",
			want:     true,
		},
		{
			name:     "question mark no match",
			patterns: []string{"pkg-?"},
			path:     "pkg-ab",
			want:     false,
		},
		{
			name:     "character class",
			patterns: []string{"v[0-9]"},
			path:     "v5",
			want:     true,
		},
		{
			name:     "negated character class",
			patterns: []string{"v[!a-z]"},
			path:     "v1",
			want:     true,
		},
		{
			name:     "alternatives",
			patterns: []string{"{apps,packages}/*"},
			path:     "apps/web",
			want:     true,
		},
		{
			name:     "multiple patterns",
			patterns: []string{"apps/*", "tools/*"},
			path:     "tools/cli",
			want:     true,
		},
		{
			name:     "exact match",
			patterns: []string{"packages/foo"},
			path:     "packages/foo/",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, err := utils.NewPatternMatcher(tt.patterns)
			if err != nil {
				t.Fatalf("NewPatternMatcher() error = %v", err)
			}
			if got := pm.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) with %v = %v, want %v", tt.path, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestPatternMatcher_InvalidPattern(t *testing.T) {
	if _, err := utils.NewPatternMatcher([]string{"packages/[a-"}); err == nil {
		t.Error("expected an error for an unterminated character class")
	}
}

func TestPatternMatcher_GetMatchingPaths(t *testing.T) {
	pm, err := utils.NewPatternMatcher([]string{"packages/*"})
	if err != nil {
		t.Fatal(err)
	}

	paths := []string{"packages/a", "apps/b", "packages/c", "packages/c/d"}
	got := pm.GetMatchingPaths(paths)
	want := []string{"packages/a", "packages/c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetMatchingPaths() = %v, want %v", got, want)
	}
	if !pm.MatchAny(paths) {
		t.Error("MatchAny() = false, want true")
	}
	if pm.MatchAny([]string{"apps/b"}) {
		t.Error("MatchAny() = true, want false")
	}
}

func TestPatternMatcher_Empty(t *testing.T) {
	pm, err := utils.NewPatternMatcher(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !pm.Empty() {
		t.Error("Empty() = false for a matcher without patterns")
	}
	if pm.Match("anything") {
		t.Error("an empty matcher must not match")
	}
}

func TestIsGlobPattern(t *testing.T) {
	tests := map[string]bool{
		"packages/*":   true,
		"pkg-?":        true,
		"v[0-9]":       true,
		"{a,b}":        true,
		"packages/foo": false,
		"":             false,
	}
	for pattern, want := range tests {
		if got := utils.IsGlobPattern(pattern); got != want {
			t.Errorf("IsGlobPattern(%q) = %v, want %v", pattern, got, want)
		}
	}
}

func TestNormalizePattern(t *testing.T) {
	tests := map[string]string{
		"./packages/*":   "packages/*",
		"packages/foo/":  "packages/foo",
		`packages\win\*`: "packages/win/*",
		"/":              "/",
	}
	for in, want := range tests {
		if got := utils.NormalizePattern(in); got != want {
			t.Errorf("NormalizePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitNegated(t *testing.T) {
	include, exclude := utils.SplitNegated([]string{"packages/*", "!packages/internal", "apps/*"})
	if !reflect.DeepEqual(include, []string{"packages/*", "apps/*"}) {
		t.Errorf("include = %v", include)
	}
	if !reflect.DeepEqual(exclude, []string{"packages/internal"}) {
		t.Errorf("exclude = %v", exclude)
	}
}

func TestExclusionMatcher(t *testing.T) {
	em, err := utils.NewExclusionMatcher([]string{"node_modules", "fixtures/**"})
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]bool{
		"node_modules":                 true,
		"packages/foo/node_modules":    true,
		"packages/foo/node_modules/x":  true,
		"fixtures/broken":              true,
		"packages/foo":                 false,
		"packages/node_modules_helper": false,
	}
	for path, want := range tests {
		if got := em.IsExcluded(path); got != want {
			t.Errorf("IsExcluded(%q) = %v, want %v", path, got, want)
		}
	}

	filtered := em.FilterPaths([]string{"packages/a", "node_modules/b", "fixtures/c"})
	if !reflect.DeepEqual(filtered, []string{"packages/a"}) {
		t.Errorf("FilterPaths() = %v", filtered)
	}
}

func TestGetDefaultExclusions(t *testing.T) {
	exclusions := utils.GetDefaultExclusions()
	found := false
	for _, e := range exclusions {
		if e == "node_modules" {
			found = true
		}
	}
	if !found {
		t.Error("default exclusions must contain node_modules")
	}
}

func TestMatchGlob(t *testing.T) {
	ok, err := utils.MatchGlob("**/.env", ".env")
	if err != nil || !ok {
		t.Errorf("MatchGlob(**/.env, .env) = %v, %v", ok, err)
	}
	ok, err = utils.MatchGlob("*.js", "lib/index.js")
	if err != nil || ok {
		t.Errorf("MatchGlob(*.js, lib/index.js) = %v, %v", ok, err)
	}
}

func BenchmarkPatternMatcher_Match(b *testing.B) {
	pm, err := utils.NewPatternMatcher([]string{"packages/*", "apps/**", "**/*.pem"})
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		pm.Match("apps/web/src/server.pem")
	}
}
