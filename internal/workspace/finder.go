// Package workspace discovers the packages a smoke run tests.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	smokeerrors "github.com/smoker/smoker/pkg/errors"
	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/types"
	"github.com/smoker/smoker/pkg/utils"
)

// ManifestName is the file that marks a package directory
const ManifestName = "package.json"

// Finder reads the root manifest and its "workspaces" globs
type Finder struct {
	logger     logger.Logger
	exclusions []string
}

// NewFinder creates a Finder that never descends into the default
// exclusions (VCS metadata, node_modules, caches)
func NewFinder(log logger.Logger) *Finder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Finder{
		logger:     log.WithTarget("workspace"),
		exclusions: utils.GetDefaultExclusions(),
	}
}

// Find returns the selected workspaces in a stable order.
//
// With named workspaces, exactly those are returned (private ones included)
// and an unknown name is an error. With All, every workspace member is
// returned, plus the root when IncludeRoot is set. Otherwise only the root
// package is tested. Private packages are skipped unless named.
func (f *Finder) Find(ctx context.Context, opts types.SmokerOptions) ([]types.WorkspaceInfo, error) {
	root, err := filepath.Abs(opts.Cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", opts.Cwd, err)
	}

	rootInfo, err := ReadWorkspace(root)
	if err != nil {
		return nil, err
	}

	members, err := f.members(ctx, root, rootInfo.PkgJSON)
	if err != nil {
		return nil, err
	}

	if len(opts.Workspaces) > 0 {
		return selectNamed(root, append([]types.WorkspaceInfo{rootInfo}, members...), opts.Workspaces)
	}

	var candidates []types.WorkspaceInfo
	switch {
	case opts.All && len(members) > 0:
		if opts.IncludeRoot {
			candidates = append(candidates, rootInfo)
		}
		candidates = append(candidates, members...)
	default:
		candidates = []types.WorkspaceInfo{rootInfo}
	}

	selected := make([]types.WorkspaceInfo, 0, len(candidates))
	for _, ws := range candidates {
		if ws.Private {
			f.logger.Debug("Skipping private package", logger.WithField("package", ws.PkgName))
			continue
		}
		selected = append(selected, ws)
	}
	f.logger.Debug("Workspaces selected", logger.WithField("count", len(selected)))
	return selected, nil
}

// members walks root for directories matching the root manifest's
// "workspaces" globs
func (f *Finder) members(ctx context.Context, root string, rootPkg map[string]any) ([]types.WorkspaceInfo, error) {
	patterns := Patterns(rootPkg)
	if len(patterns) == 0 {
		return nil, nil
	}

	include, exclude := utils.SplitNegated(patterns)
	includes, err := utils.NewPatternMatcher(include)
	if err != nil {
		return nil, &smokeerrors.ValidationError{Field: "workspaces", Reason: err.Error()}
	}
	excludes, err := utils.NewPatternMatcher(exclude)
	if err != nil {
		return nil, &smokeerrors.ValidationError{Field: "workspaces", Reason: err.Error()}
	}
	skip, err := utils.NewExclusionMatcher(f.exclusions)
	if err != nil {
		return nil, err
	}

	var found []types.WorkspaceInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if skip.IsExcluded(rel) {
			return filepath.SkipDir
		}
		if !includes.Match(rel) || excludes.Match(rel) {
			return nil
		}

		ws, err := ReadWorkspace(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		found = append(found, ws)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspaces under %s: %w", root, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].LocalPath < found[j].LocalPath })
	return found, nil
}

// selectNamed picks workspaces by package name or by path relative to root
func selectNamed(root string, all []types.WorkspaceInfo, names []string) ([]types.WorkspaceInfo, error) {
	selected := make([]types.WorkspaceInfo, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		ws, ok := lookup(root, all, name)
		if !ok {
			return nil, &smokeerrors.ValidationError{
				Field:  "workspace",
				Reason: fmt.Sprintf("no workspace named %q", name),
			}
		}
		if _, dup := seen[ws.LocalPath]; dup {
			continue
		}
		seen[ws.LocalPath] = struct{}{}
		selected = append(selected, ws)
	}
	return selected, nil
}

func lookup(root string, all []types.WorkspaceInfo, name string) (types.WorkspaceInfo, bool) {
	want := utils.NormalizePattern(name)
	for _, ws := range all {
		if ws.PkgName == name {
			return ws, true
		}
		rel, err := filepath.Rel(root, ws.LocalPath)
		if err != nil {
			continue
		}
		if filepath.ToSlash(rel) == want || ws.LocalPath == filepath.Clean(name) {
			return ws, true
		}
	}
	return types.WorkspaceInfo{}, false
}

// Patterns extracts the "workspaces" globs of a manifest. Both the array
// form and the object form ({"packages": [...]}) are accepted.
func Patterns(pkgJSON map[string]any) []string {
	var raw []any
	switch v := pkgJSON["workspaces"].(type) {
	case []any:
		raw = v
	case map[string]any:
		raw, _ = v["packages"].([]any)
	}

	patterns := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
			patterns = append(patterns, s)
		}
	}
	return patterns
}

// ReadWorkspace loads the manifest in dir. The returned error wraps
// fs.ErrNotExist when dir has no manifest.
func ReadWorkspace(dir string) (types.WorkspaceInfo, error) {
	manifest := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(manifest)
	if err != nil {
		return types.WorkspaceInfo{}, fmt.Errorf("failed to read %s: %w", manifest, err)
	}

	var pkgJSON map[string]any
	if err := json.Unmarshal(data, &pkgJSON); err != nil {
		return types.WorkspaceInfo{}, fmt.Errorf("failed to parse %s: %w", manifest, err)
	}

	name, _ := pkgJSON["name"].(string)
	if name == "" {
		name = filepath.Base(dir)
	}
	private, _ := pkgJSON["private"].(bool)

	return types.WorkspaceInfo{
		PkgName:     name,
		PkgJSONPath: manifest,
		LocalPath:   dir,
		PkgJSON:     pkgJSON,
		Private:     private,
	}, nil
}
