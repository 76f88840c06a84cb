// pkg/platform/utils.go
package platform

import (
	"os/exec"
	"path"
	"strings"
)

// Match reports whether the host matches an "os/arch" pattern. Either half
// may be a glob ("linux/*", "*/arm64") and accepts the same aliases as New.
// A bare OS ("darwin") matches every architecture.
func (h Host) Match(pattern string) bool {
	osPat, archPat, ok := strings.Cut(pattern, "/")
	if !ok {
		archPat = "*"
	}
	return globMatch(NormalizeOS(osPat), h.OS) && globMatch(NormalizeArch(archPat), h.Arch)
}

// LookupTool returns the absolute path of an executable found in PATH
func LookupTool(name string) (string, bool) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return p, true
}

func globMatch(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, value)
	return err == nil && ok
}
