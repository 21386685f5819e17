// Package pkgmanager defines the capability a package-manager backend exposes
// to the smoke-test engine.
package pkgmanager

import (
	"context"

	"github.com/smoker/smoker/pkg/logger"
	"github.com/smoker/smoker/pkg/types"
)

//go:generate mockgen -destination=../mocks/mock_pkgmanager.go -package=mocks github.com/smoker/smoker/pkg/pkgmanager PkgManager

// Context is shared by every call a pipeline makes against one backend
type Context struct {
	Spec    types.PkgManagerSpec
	TmpDir  string
	Logger  logger.Logger
	Verbose bool
}

// PackContext is the input of a pack call
type PackContext struct {
	Context
	Workspace types.WorkspaceInfo
}

// InstallContext is the input of an install call
type InstallContext struct {
	Context
	Manifest types.InstallManifest
}

// RunScriptContext is the input of a run-script call
type RunScriptContext struct {
	Context
	Manifest types.RunScriptManifest
}

// PkgManager packs, installs and runs scripts for one backend instance.
//
// Install and RunScript report non-zero exits through the returned
// ExecResult rather than an error. RunScript returns an error wrapping
// errors.ErrUnknownScript when the workspace does not define the script.
type PkgManager interface {
	Pack(ctx context.Context, pc *PackContext) (*types.PackArtifact, error)
	Install(ctx context.Context, ic *InstallContext) (*types.ExecResult, error)
	RunScript(ctx context.Context, rc *RunScriptContext) (*types.ExecResult, error)
}

// Setupper is implemented by backends that prepare the sandbox
type Setupper interface {
	Setup(ctx context.Context, c *Context) error
}

// Teardowner is implemented by backends that release resources at shutdown
type Teardowner interface {
	Teardown(ctx context.Context, c *Context) error
}

// Envelope binds a resolved spec to its backend and owning plugin
type Envelope struct {
	Spec       types.PkgManagerSpec
	PkgManager PkgManager
	Plugin     string
}

// Definition declares a backend a plugin can provide
type Definition struct {
	Name        string
	Bin         string
	Description string
	// Versions is a semver constraint on the versions this backend supports.
	// Empty accepts any version.
	Versions string
	New      func(spec types.PkgManagerSpec) (PkgManager, error)
}
