// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIntegrity indicates a downloaded artifact does not match its pinned hash
	ErrIntegrity = errors.New("integrity check failed")

	// ErrFetch indicates an artifact could not be downloaded or unpacked
	ErrFetch = errors.New("fetch failed")

	// ErrAmbiguousArtifact indicates a directory pattern matched zero or several candidates
	ErrAmbiguousArtifact = errors.New("ambiguous artifact")

	// ErrBuild indicates a native build phase exited unsuccessfully
	ErrBuild = errors.New("build failed")

	// ErrAlreadyInstalled indicates the prefix holds a completed install
	ErrAlreadyInstalled = errors.New("already installed")

	// ErrUnresolvedDependency indicates a component depends on one that is not in the plan
	ErrUnresolvedDependency = errors.New("unresolved dependency")

	// ErrDependencyCycle indicates the component table contains a dependency cycle
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrPlatformNotSupported indicates the host has no entry in a platform table
	ErrPlatformNotSupported = errors.New("platform not supported")

	// ErrMissingComponent indicates a referenced component has no staging layout entry
	ErrMissingComponent = errors.New("missing component")

	// ErrLayoutEntryExists indicates a second write to a staging layout key
	ErrLayoutEntryExists = errors.New("layout entry already written")

	// ErrInvalidComponent indicates a component specification failed validation
	ErrInvalidComponent = errors.New("invalid component")
)

// Error wraps an error with additional context
type Error struct {
	Op        string // Operation that failed
	Component string // Component ID if applicable
	Err       error  // Underlying error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Component, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IntegrityError reports a content hash mismatch. It is never retried or bypassed.
type IntegrityError struct {
	Component string
	URL       string
	Expected  string
	Got       string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s (%s)\nExpected: %s\nGot:      %s",
		e.Component, e.URL, e.Expected, e.Got)
}

// Unwrap returns ErrIntegrity so callers can use errors.Is.
func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// FetchError reports a network or unpack failure. Callers may retry the fetch.
type FetchError struct {
	Component string
	URL       string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s from %s: %v", e.Component, e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// AmbiguousArtifactError reports that a staging pattern did not match exactly one directory.
type AmbiguousArtifactError struct {
	Dir     string
	Pattern string
	Matches []string
}

func (e *AmbiguousArtifactError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("no directory matching %q in %s", e.Pattern, e.Dir)
	}
	return fmt.Sprintf("%d directories match %q in %s: %s",
		len(e.Matches), e.Pattern, e.Dir, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousArtifactError) Unwrap() error { return ErrAmbiguousArtifact }

// BuildError carries the captured output of a failed build phase.
type BuildError struct {
	Component string
	Phase     string
	ExitCode  int // -1 when the process could not be started
	Stdout    string
	Stderr    string
	Err       error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s: %s phase exited with code %d", e.Component, e.Phase, e.ExitCode)
	if tail := lastLines(e.Stderr, 10); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuild}
	}
	return []error{ErrBuild, e.Err}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
