package stage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/bundlekit/pkg/build"
	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/fetch"
)

func writeFile(t *testing.T, path, body string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), perm))
}

// snapshot maps every path below root to its mode and content
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()

	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			out[rel] = "dir"
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			out[rel] = "link:" + link
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out[rel] = info.Mode().Perm().String() + ":" + string(data)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func sum(data string) string {
	s := sha256.Sum256([]byte(data))
	return hex.EncodeToString(s[:])
}

// unpackedAutopsy lays out what the fetcher leaves for the autopsy zip
func unpackedAutopsy(t *testing.T) string {
	t.Helper()

	src := t.TempDir()
	root := filepath.Join(src, "autopsy-4.21.0")
	writeFile(t, filepath.Join(root, "bin", "autopsy"), "#!/bin/sh\necho autopsy\n", 0755)
	writeFile(t, filepath.Join(root, "etc", "autopsy.conf"), "default_userdir=\"${HOME}/.autopsy\"\n", 0644)
	writeFile(t, filepath.Join(root, "unix_setup.sh"), "#!/bin/sh\necho bundled\n", 0644)
	require.NoError(t, os.Symlink("bin/autopsy", filepath.Join(root, "launch")))
	return src
}

func TestLocate(t *testing.T) {
	t.Parallel()

	src := unpackedAutopsy(t)
	writeFile(t, filepath.Join(src, "autopsy-4.21.0.txt"), "not a directory", 0644)

	got, err := Locate(src, "autopsy-*.*.*")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "autopsy-4.21.0"), got)

	got, err = Locate(src, "")
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestLocateAmbiguous(t *testing.T) {
	t.Parallel()

	// two archives unpacked into the same parent
	src := unpackedAutopsy(t)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "autopsy-4.19.3", "bin"), 0755))

	_, err := Locate(src, "autopsy-*.*.*")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAmbiguousArtifact)

	var ae *core.AmbiguousArtifactError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"autopsy-4.19.3", "autopsy-4.21.0"}, ae.Matches)

	_, err = Locate(src, "sleuthkit-*")
	require.ErrorAs(t, err, &ae)
	assert.Empty(t, ae.Matches)
}

func TestStagePrebuiltIsIdempotent(t *testing.T) {
	t.Parallel()

	src := unpackedAutopsy(t)
	dest := filepath.Join(t.TempDir(), "install", "autopsy")
	s := New(nil, nil, &Config{})
	spec := &core.ComponentSpec{ID: "autopsy", Pattern: "autopsy-*.*.*"}

	require.NoError(t, s.StagePrebuilt(spec, src, dest))
	assert.True(t, IsIncomplete(dest))
	require.NoError(t, Finish(dest))
	assert.False(t, IsIncomplete(dest))
	first := snapshot(t, dest)

	// a leftover from an interrupted run must not survive restaging
	writeFile(t, filepath.Join(dest, "stale.jar"), "old", 0644)

	require.NoError(t, s.StagePrebuilt(spec, src, dest))
	require.NoError(t, Finish(dest))
	second := snapshot(t, dest)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("restaging changed the tree (-first +second):\n%s", diff)
	}
	assert.Equal(t, "-rwxr-xr-x:#!/bin/sh\necho autopsy\n", first[filepath.Join("bin", "autopsy")])
	assert.Equal(t, "link:bin/autopsy", first["launch"])
}

func TestStagePrebuiltAmbiguousLeavesNothing(t *testing.T) {
	t.Parallel()

	src := unpackedAutopsy(t)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "autopsy-4.19.3"), 0755))
	dest := filepath.Join(t.TempDir(), "autopsy")

	err := New(nil, nil, &Config{}).StagePrebuilt(&core.ComponentSpec{ID: "autopsy", Pattern: "autopsy-*.*.*"}, src, dest)
	assert.ErrorIs(t, err, core.ErrAmbiguousArtifact)
	assert.NoDirExists(t, dest)
}

func TestStageCompiled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	prefix := filepath.Join(root, "install", "sleuthkit")
	destDir := filepath.Join(root, "work", "destdir")
	writeFile(t, filepath.Join(destDir, prefix, "lib", "libtsk.so.19"), "elf", 0755)
	writeFile(t, filepath.Join(destDir, prefix, "share", "java", "sleuthkit-4.12.1.jar"), "jar", 0644)

	s := New(nil, nil, &Config{})
	spec := &core.ComponentSpec{ID: "sleuthkit"}
	require.NoError(t, s.StageCompiled(spec, destDir, prefix))

	assert.FileExists(t, filepath.Join(prefix, "lib", "libtsk.so.19"))
	assert.FileExists(t, filepath.Join(prefix, "share", "java", "sleuthkit-4.12.1.jar"))
	assert.True(t, IsIncomplete(prefix))

	err := s.StageCompiled(spec, filepath.Join(root, "empty"), prefix)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	curated := "#!/bin/sh\necho curated\n"
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(curated))
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		name      string
		override  core.Override
		pins      map[string]string
		wantErr   error
		wantBody  string
		wantFetch bool
	}{
		{
			name:      "pinned",
			override:  core.Override{Name: "unix_setup", Path: "unix_setup.sh", URL: srv.URL, SHA256: sum(curated)},
			wantBody:  curated,
			wantFetch: true,
		},
		{
			name:      "pinned by config",
			override:  core.Override{Name: "unix_setup", Path: "unix_setup.sh", URL: srv.URL},
			pins:      map[string]string{"unix_setup": sum(curated)},
			wantBody:  curated,
			wantFetch: true,
		},
		{
			name:      "hash mismatch",
			override:  core.Override{Name: "unix_setup", Path: "unix_setup.sh", URL: srv.URL, SHA256: sum("something else")},
			wantErr:   core.ErrIntegrity,
			wantBody:  "#!/bin/sh\necho bundled\n",
			wantFetch: true,
		},
		{
			name:     "unpinned is skipped",
			override: core.Override{Name: "unix_setup", Path: "unix_setup.sh", URL: srv.URL},
			wantBody: "#!/bin/sh\necho bundled\n",
		},
		{
			name:     "unpinned but required",
			override: core.Override{Name: "unix_setup", Path: "unix_setup.sh", URL: srv.URL, Required: true},
			wantErr:  core.ErrIntegrity,
			wantBody: "#!/bin/sh\necho bundled\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "autopsy")
			require.NoError(t, CopyTree(filepath.Join(unpackedAutopsy(t), "autopsy-4.21.0"), dest))

			f := fetch.New(&fetch.Config{DownloadDir: t.TempDir(), WorkRoot: t.TempDir()})
			s := New(f, nil, &Config{OverrideHashes: tt.pins})

			before := hits.Load()
			err := s.ApplyOverrides(context.Background(), &core.ComponentSpec{
				ID: "autopsy", Overrides: []core.Override{tt.override},
			}, dest)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantFetch, hits.Load() > before)

			target := filepath.Join(dest, "unix_setup.sh")
			data, err := os.ReadFile(target)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(data))

			if tt.wantErr == nil && tt.wantFetch {
				info, err := os.Stat(target)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
			}
		})
	}
}

func TestApplyOverridesRejectsEscape(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	s := New(nil, nil, &Config{})
	err := s.ApplyOverrides(context.Background(), &core.ComponentSpec{
		ID: "autopsy",
		Overrides: []core.Override{{
			Name: "evil", Path: "../../etc/profile", URL: "https://example.com/x", SHA256: sum("x"),
		}},
	}, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

type recordingRunner struct {
	dir  string
	argv []string
	env  build.Env
}

func (r *recordingRunner) Run(ctx context.Context, component, phase, dir string, env build.Env, argv []string) error {
	r.dir, r.argv, r.env = dir, argv, env
	return nil
}

func TestRunSetup(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "autopsy")
	writeFile(t, filepath.Join(dest, "unix_setup.sh"), "#!/bin/sh\n", 0644)

	runner := &recordingRunner{}
	s := New(nil, runner, &Config{})
	spec := &core.ComponentSpec{
		ID: "autopsy",
		Setup: &core.SetupStep{
			Script: "unix_setup.sh",
			Args:   []string{"-j", "${liberica_jvm}"},
			Env:    map[string]string{"TSK_JAVA_LIB_PATH": "${sleuthkit}/share/java"},
		},
	}
	expand := func(s string) string {
		s = strings.ReplaceAll(s, "${liberica_jvm}", "/p/install/liberica_jvm")
		return strings.ReplaceAll(s, "${sleuthkit}", "/p/install/sleuthkit")
	}

	base := build.NewEnv([]string{"PATH=/usr/bin"})
	require.NoError(t, s.RunSetup(context.Background(), spec, dest, base, expand))

	assert.Equal(t, dest, runner.dir)
	assert.Equal(t, []string{filepath.Join(dest, "unix_setup.sh"), "-j", "/p/install/liberica_jvm"}, runner.argv)
	v, _ := runner.env.Get("TSK_JAVA_LIB_PATH")
	assert.Equal(t, "/p/install/sleuthkit/share/java", v)
	_, leaked := base.Get("TSK_JAVA_LIB_PATH")
	assert.False(t, leaked)

	info, err := os.Stat(filepath.Join(dest, "unix_setup.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100)

	runner.argv = nil
	require.NoError(t, s.RunSetup(context.Background(), &core.ComponentSpec{ID: "sleuthkit"}, dest, base, expand))
	assert.Nil(t, runner.argv)
}
