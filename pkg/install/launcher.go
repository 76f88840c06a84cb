// pkg/install/launcher.go
package install

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LauncherPath returns the path of the launcher symlink
func LauncherPath(prefix, name string) string {
	return filepath.Join(prefix, "bin", name)
}

// link points <prefix>/bin/<name> at target, replacing an earlier link
func link(prefix, name, target string) (string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("launcher target: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("launcher target %s is a directory", target)
	}

	path := LauncherPath(prefix, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating bin directory: %w", err)
	}
	if err := removeLink(path); err != nil {
		return "", err
	}
	if err := os.Symlink(target, path); err != nil {
		return "", fmt.Errorf("creating launcher: %w", err)
	}
	return path, nil
}

// removeLink removes path if it is a symlink. Regular files are left
// alone so a clean never deletes something bundlekit did not create.
func removeLink(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return fmt.Errorf("%s exists and is not a symlink", path)
	}
	return os.Remove(path)
}
