// pkg/env/library.go
package env

import (
	"os"
	"path/filepath"
)

// FindSharedLibrary searches dirs, in order, for lib<name> with a shared
// library extension of goos. Versioned names (libtsk.so.19, libtsk.19.dylib)
// match as well.
func FindSharedLibrary(dirs []string, name, goos string) *Library {
	for _, dir := range dirs {
		for _, ext := range GetSharedLibraryExtensions(goos) {
			filename := "lib" + name + ext
			fullPath := filepath.Join(dir, filename)

			if fileExists(fullPath) {
				return &Library{Name: name, Path: fullPath, Type: ext}
			}

			// Try versioned: libtsk.so.19 on Linux, libtsk.19.dylib on macOS
			for _, pattern := range []string{filename + ".*", "lib" + name + ".*" + ext} {
				matches, _ := filepath.Glob(filepath.Join(dir, pattern))
				if len(matches) > 0 {
					return &Library{Name: name, Path: matches[0], Type: ext}
				}
			}
		}
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
