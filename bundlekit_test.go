package bundlekit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/bundlekit/pkg/platform"
)

func TestLoadManifestDefault(t *testing.T) {
	t.Parallel()

	m, err := LoadManifest(&Config{})
	require.NoError(t, err)
	assert.Equal(t, "autopsy", m.Name)
}

func TestLoadManifestFromConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: tools
components:
  - id: busybox
    kind: prebuilt-stage
    url: https://example.com/busybox.tar.xz
    sha256: "0000000000000000000000000000000000000000000000000000000000000001"
`), 0644))

	m, err := LoadManifest(&Config{Manifest: path})
	require.NoError(t, err)
	assert.Equal(t, "tools", m.Name)

	_, err = LoadManifest(&Config{Manifest: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "loading manifest")
}

func TestNewOrchestratorPlansForHost(t *testing.T) {
	t.Parallel()

	cfg := &Config{Prefix: t.TempDir(), CachePath: t.TempDir()}
	o, err := NewOrchestrator(cfg, Host{OS: platform.OSDarwin, Arch: platform.ArchArm64})
	require.NoError(t, err)

	plan, err := o.Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{"liberica_jvm", "sleuthkit", "autopsy"}, plan.IDs())
	assert.Contains(t, plan.Components[0].URL, "macos-aarch64")
}

func TestInstalledWithoutInstall(t *testing.T) {
	t.Parallel()

	_, err := Installed(&Config{Prefix: t.TempDir()})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
