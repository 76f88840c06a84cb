// errors.go
package bundlekit

import (
	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/install"
)

// Re-exported so callers can match failures with errors.Is without
// importing pkg/core.
var (
	ErrIntegrity            = core.ErrIntegrity
	ErrFetch                = core.ErrFetch
	ErrAmbiguousArtifact    = core.ErrAmbiguousArtifact
	ErrBuild                = core.ErrBuild
	ErrAlreadyInstalled     = core.ErrAlreadyInstalled
	ErrUnresolvedDependency = core.ErrUnresolvedDependency
	ErrDependencyCycle      = core.ErrDependencyCycle
	ErrPlatformNotSupported = core.ErrPlatformNotSupported
	ErrMissingComponent     = core.ErrMissingComponent
)

// Error types carrying details of a failure
type (
	Error                  = core.Error
	IntegrityError         = core.IntegrityError
	FetchError             = core.FetchError
	AmbiguousArtifactError = core.AmbiguousArtifactError
	BuildError             = core.BuildError
	StageError             = install.StageError
)
