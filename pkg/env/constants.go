// pkg/env/constants.go
package env

import "github.com/arc-language/bundlekit/pkg/platform"

// ListSeparator joins search path lists on every supported host
const ListSeparator = ":"

// PathsPlaceholder is replaced by the joined path list in a binding template
const PathsPlaceholder = "{paths}"

// LibraryPathVar returns the dynamic loader's search path variable for a host
func LibraryPathVar(h platform.Host) string {
	switch h.OS {
	case platform.OSDarwin:
		return "DYLD_FALLBACK_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// GetSharedLibraryExtensions returns only shared library extensions
func GetSharedLibraryExtensions(goos string) []string {
	switch goos {
	case platform.OSDarwin:
		return []string{".dylib"}
	default:
		return []string{".so"}
	}
}
