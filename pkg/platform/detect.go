// pkg/platform/detect.go
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Supported operating systems
const (
	OSLinux  = "linux"
	OSDarwin = "darwin"
)

// Supported CPU architectures, using Go's names
const (
	ArchAmd64 = "amd64"
	ArchArm64 = "arm64"
)

// Host describes the machine an install targets
type Host struct {
	OS   string // linux, darwin
	Arch string // amd64, arm64
}

// AllHosts lists every (OS, arch) pair the component tables are written for
var AllHosts = []Host{
	{OS: OSLinux, Arch: ArchAmd64},
	{OS: OSLinux, Arch: ArchArm64},
	{OS: OSDarwin, Arch: ArchAmd64},
	{OS: OSDarwin, Arch: ArchArm64},
}

// Detect returns the host the process is running on
func Detect() (Host, error) {
	return New(runtime.GOOS, runtime.GOARCH)
}

// New builds a Host from an OS and architecture, accepting common aliases
// such as x86_64, aarch64 and macos.
func New(goos, goarch string) (Host, error) {
	h := Host{OS: NormalizeOS(goos), Arch: NormalizeArch(goarch)}
	if !h.IsValid() {
		return Host{}, fmt.Errorf("unsupported platform: %s/%s", goos, goarch)
	}
	return h, nil
}

// Parse parses "os/arch"
func Parse(s string) (Host, error) {
	goos, goarch, ok := strings.Cut(s, "/")
	if !ok {
		return Host{}, fmt.Errorf("invalid platform %q: expected os/arch", s)
	}
	return New(goos, goarch)
}

// NormalizeOS maps OS aliases onto Go's names
func NormalizeOS(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "macos", "osx", "mac":
		return OSDarwin
	default:
		return s
	}
}

// NormalizeArch maps architecture aliases onto Go's names
func NormalizeArch(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "x86_64", "x86-64", "x64", "intel":
		return ArchAmd64
	case "aarch64", "arm64e":
		return ArchArm64
	default:
		return s
	}
}

// String returns the "os/arch" form
func (h Host) String() string {
	return h.OS + "/" + h.Arch
}

// IsValid reports whether the host is one of AllHosts
func (h Host) IsValid() bool {
	for _, valid := range AllHosts {
		if h == valid {
			return true
		}
	}
	return false
}
