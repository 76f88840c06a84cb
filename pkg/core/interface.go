// pkg/core/interface.go
package core

import "context"

// Fetcher retrieves, verifies and unpacks component artifacts
type Fetcher interface {
	// Fetch returns the path of the verified, unpacked source tree
	Fetch(ctx context.Context, spec *ComponentSpec) (string, error)

	// FetchFile downloads a single verified file to dest
	FetchFile(ctx context.Context, id, url, sha256, dest string) error
}

// StagingLayout maps component IDs to their installed paths
type StagingLayout interface {
	// Path returns the staged path of a component
	Path(id string) (string, bool)
}
