package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/bundlekit/pkg/core"
)

const fakeConfigure = `#!/bin/sh
for a in "$@"; do
  case "$a" in --prefix=*) echo "${a#--prefix=}" > .prefix ;; esac
done
echo "$@" > configure.args
env > configure.env
`

const fakeMake = `#!/bin/sh
if [ "$FAIL_PHASE" = "compile" ] && [ "$2" != "install" ]; then
  echo "error: tsk_fs.c:42: undefined reference" >&2
  exit 1
fi
case "$2" in
install)
  dest="${3#DESTDIR=}"
  prefix=$(cat .prefix)
  mkdir -p "$dest$prefix/lib"
  echo tsk > "$dest$prefix/lib/libtsk.so"
  ;;
*)
  echo "$@" > make.args
  echo "$MAKEFLAGS" > make.flags
  ;;
esac
`

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
}

func testEnv(extra ...string) Env {
	return NewEnv(append([]string{"PATH=" + os.Getenv("PATH")}, extra...))
}

// newFakeBuild returns a builder using a fake make, and a source tree
// with a fake configure script
func newFakeBuild(t *testing.T, parallel bool) (*Builder, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake build scripts need /bin/sh")
	}

	dir := t.TempDir()
	makePath := filepath.Join(dir, "bin", "make")
	writeScript(t, makePath, fakeMake)

	src := filepath.Join(dir, "sleuthkit-4.12.1")
	writeScript(t, filepath.Join(src, "configure"), fakeConfigure)

	return New(&Config{Make: makePath, Parallel: parallel}), src
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestSteps(t *testing.T) {
	t.Parallel()

	b := New(&Config{})
	steps := b.Steps(&Request{
		Prefix:        "/p/install/sleuthkit",
		DestDir:       "/w/destdir",
		ConfigureArgs: []string{"--disable-java"},
	})

	require.Len(t, steps, 3)
	assert.Equal(t, PhaseConfigure, steps[0].Phase)
	assert.Equal(t, []string{"./configure", "--disable-dependency-tracking", "--prefix=/p/install/sleuthkit", "--disable-java"}, steps[0].Argv)
	assert.Equal(t, []string{"make", "-j1"}, steps[1].Argv)
	assert.Equal(t, []string{"make", "-j1", "install", "DESTDIR=/w/destdir"}, steps[2].Argv)
}

func TestJobs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, New(&Config{}).Jobs())
	assert.Equal(t, runtime.NumCPU(), New(&Config{Parallel: true}).Jobs())
}

func TestBuild(t *testing.T) {
	t.Parallel()

	b, src := newFakeBuild(t, false)
	destDir := filepath.Join(t.TempDir(), "destdir")
	prefix := "/opt/bundle/install/sleuthkit"

	err := b.Build(context.Background(), &Request{
		Component:  "sleuthkit",
		SourceTree: src,
		Prefix:     prefix,
		DestDir:    destDir,
		Env:        testEnv("JAVA_HOME=/opt/jvm"),
	})
	require.NoError(t, err)

	assert.Equal(t, "--disable-dependency-tracking --prefix="+prefix, readFile(t, filepath.Join(src, "configure.args")))
	assert.Equal(t, "-j1", readFile(t, filepath.Join(src, "make.args")))
	assert.Equal(t, "-j1", readFile(t, filepath.Join(src, "make.flags")))
	assert.FileExists(t, filepath.Join(destDir, prefix, "lib", "libtsk.so"))

	configureEnv := readFile(t, filepath.Join(src, "configure.env"))
	assert.Contains(t, configureEnv, "JAVA_HOME=/opt/jvm")
}

func TestBuildParallel(t *testing.T) {
	t.Parallel()

	b, src := newFakeBuild(t, true)
	err := b.Build(context.Background(), &Request{
		Component: "sleuthkit", SourceTree: src, Prefix: "/p", DestDir: t.TempDir(), Env: testEnv(),
	})
	require.NoError(t, err)
	assert.Equal(t, "-j"+strconv.Itoa(runtime.NumCPU()), readFile(t, filepath.Join(src, "make.flags")))
}

func TestBuildEnvIsolation(t *testing.T) {
	t.Setenv("BUNDLEKIT_LEAK_CHECK", "leaked")
	makeflags := os.Getenv("MAKEFLAGS")

	b, src := newFakeBuild(t, false)
	err := b.Build(context.Background(), &Request{
		Component: "sleuthkit", SourceTree: src, Prefix: "/p", DestDir: t.TempDir(), Env: testEnv(),
	})
	require.NoError(t, err)

	assert.NotContains(t, readFile(t, filepath.Join(src, "configure.env")), "BUNDLEKIT_LEAK_CHECK")
	assert.Equal(t, makeflags, os.Getenv("MAKEFLAGS"), "builds must not write the process environment")
}

func TestBuildFailure(t *testing.T) {
	t.Parallel()

	b, src := newFakeBuild(t, false)
	destDir := filepath.Join(t.TempDir(), "destdir")

	err := b.Build(context.Background(), &Request{
		Component: "sleuthkit", SourceTree: src, Prefix: "/p", DestDir: destDir, Env: testEnv("FAIL_PHASE=compile"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBuild)

	var be *core.BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "sleuthkit", be.Component)
	assert.Equal(t, PhaseCompile, be.Phase)
	assert.Equal(t, 1, be.ExitCode)
	assert.Contains(t, be.Stderr, "undefined reference")
	assert.Contains(t, err.Error(), "undefined reference")
	assert.NoDirExists(t, destDir, "install must not run after a failed compile")
}

func TestRunMissingProgram(t *testing.T) {
	t.Parallel()

	b := New(&Config{})
	err := b.Run(context.Background(), "autopsy", PhaseSetup, t.TempDir(), testEnv(), []string{"./does-not-exist"})

	var be *core.BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, -1, be.ExitCode)
	assert.Error(t, be.Err)

	err = b.Run(context.Background(), "autopsy", PhaseSetup, t.TempDir(), testEnv(), nil)
	require.ErrorAs(t, err, &be)
	assert.Equal(t, -1, be.ExitCode)
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	b, src := newFakeBuild(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Run(ctx, "sleuthkit", PhaseConfigure, src, testEnv(), []string{"./configure"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.ErrorIs(t, err, core.ErrBuild)
}
