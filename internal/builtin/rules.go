package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/smoker/smoker/pkg/rule"
	"github.com/smoker/smoker/pkg/types"
)

// Rule names
const (
	RuleNoBannedFiles       = "no-banned-files"
	RuleNoMissingEntryPoint = "no-missing-entry-point"
	RuleNoMissingPkgFiles   = "no-missing-pkg-files"
)

// defaultBannedFiles are never expected in a published package
var defaultBannedFiles = []string{
	"**/.env",
	"**/.env.*",
	"**/.npmrc",
	"**/id_rsa",
	"**/id_ed25519",
	"**/*.pem",
	"**/*.key",
	"**/.git-credentials",
	"**/.aws/credentials",
	"**/.DS_Store",
}

// defaultPkgFileFields name package.json fields that point at shipped files
var defaultPkgFileFields = []string{"bin", "browser", "types", "typings", "unpkg", "module"}

// Rules returns the builtin lint rules
func Rules() []rule.Rule {
	return []rule.Rule{
		rule.New(RuleNoBannedFiles,
			"Files that look like secrets or local configuration must not be published",
			types.SeverityError, checkBannedFiles),
		rule.New(RuleNoMissingEntryPoint,
			"The package entry point must exist",
			types.SeverityError, checkEntryPoint),
		rule.New(RuleNoMissingPkgFiles,
			"Files referenced by package.json must exist",
			types.SeverityError, checkPkgFiles),
	}
}

// stringsOpt reads a string list option, accepting []string and []any
func stringsOpt(opts map[string]any, key string) ([]string, error) {
	raw, ok := opts[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("option %q must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{v}, nil
	}
	return nil, fmt.Errorf("option %q must be a list of strings", key)
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// matchAny matches a slash-separated relative path, also in its rooted
// form so "**/" patterns cover files at the package root
func matchAny(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) || g.Match("/"+rel) {
			return true
		}
	}
	return false
}

// checkBannedFiles walks the installed package and reports every file
// matching a banned pattern. Options: "files" adds patterns, "allow"
// exempts matches.
func checkBannedFiles(ctx context.Context, rc *rule.Context) ([]types.Issue, error) {
	extra, err := stringsOpt(rc.Opts, "files")
	if err != nil {
		return nil, err
	}
	allowed, err := stringsOpt(rc.Opts, "allow")
	if err != nil {
		return nil, err
	}
	banned, err := compileGlobs(append(append([]string(nil), defaultBannedFiles...), extra...))
	if err != nil {
		return nil, err
	}
	allow, err := compileGlobs(allowed)
	if err != nil {
		return nil, err
	}

	root := rc.Manifest.InstallPath
	var issues []types.Issue
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == "node_modules" && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if matchAny(banned, name) && !matchAny(allow, name) {
			issue := rc.Issue(RuleNoBannedFiles, fmt.Sprintf("banned file %s found in published package", rel))
			issue.FilePath = p
			issues = append(issues, issue)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, walkErr)
	}
	return issues, nil
}

// resolveEntry reports whether a module path resolves to a file the way
// Node resolves a relative require
func resolveEntry(root, entry string) bool {
	base := filepath.Join(root, filepath.FromSlash(entry))
	candidates := []string{
		base,
		base + ".js",
		base + ".json",
		base + ".cjs",
		base + ".mjs",
		filepath.Join(base, "index.js"),
		filepath.Join(base, "index.json"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// exportTargets collects the file targets of an "exports" value,
// skipping subpath patterns
func exportTargets(v any) []string {
	switch e := v.(type) {
	case string:
		if strings.Contains(e, "*") {
			return nil
		}
		return []string{e}
	case []any:
		var out []string
		for _, item := range e {
			out = append(out, exportTargets(item)...)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(e))
		for k := range e {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, exportTargets(e[k])...)
		}
		return out
	}
	return nil
}

// checkEntryPoint verifies "main" and "exports". Without either, Node
// falls back to index.js.
func checkEntryPoint(ctx context.Context, rc *rule.Context) ([]types.Issue, error) {
	pkg := rc.Manifest.PkgJSON
	root := rc.Manifest.InstallPath

	main, hasMain := pkg["main"].(string)
	exports, hasExports := pkg["exports"]

	var issues []types.Issue
	if hasMain && main != "" && !resolveEntry(root, main) {
		issues = append(issues, rc.Issue(RuleNoMissingEntryPoint, fmt.Sprintf("main entry point %q does not exist", main)))
	}
	if hasExports {
		for _, target := range exportTargets(exports) {
			if !resolveEntry(root, target) {
				issues = append(issues, rc.Issue(RuleNoMissingEntryPoint, fmt.Sprintf("export target %q does not exist", target)))
			}
		}
	}
	if (!hasMain || main == "") && !hasExports && !resolveEntry(root, "index") {
		if _, hasBin := pkg["bin"]; !hasBin {
			issues = append(issues, rc.Issue(RuleNoMissingEntryPoint, "no main, exports or bin field and no index.js"))
		}
	}
	return issues, nil
}

// fieldPaths extracts the file paths referenced by a package.json field
func fieldPaths(v any) []string {
	switch f := v.(type) {
	case string:
		return []string{f}
	case map[string]any:
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			if s, ok := f[k].(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// checkPkgFiles verifies that fields like "bin" and "types" point at
// shipped files. Option "fields" replaces the checked field list.
func checkPkgFiles(ctx context.Context, rc *rule.Context) ([]types.Issue, error) {
	fields, err := stringsOpt(rc.Opts, "fields")
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = defaultPkgFileFields
	}

	root := rc.Manifest.InstallPath
	var issues []types.Issue
	for _, field := range fields {
		raw, ok := rc.Manifest.PkgJSON[field]
		if !ok {
			continue
		}
		for _, p := range fieldPaths(raw) {
			full := filepath.Join(root, filepath.FromSlash(path.Clean(p)))
			if _, err := os.Stat(full); err != nil {
				issue := rc.Issue(RuleNoMissingPkgFiles, fmt.Sprintf("file %q referenced by %q does not exist", p, field))
				issue.FilePath = full
				issues = append(issues, issue)
			}
		}
	}
	return issues, nil
}
