package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"zombiezen.com/go/nix/nar"
)

type entry struct {
	name string
	body string
	mode int64
	link string // symlink target
	dir  bool
}

func tarBytes(t *testing.T, entries []entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0755
			}
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
			hdr.Mode = 0777
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
			if hdr.Mode == 0 {
				hdr.Mode = 0644
			}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(data)
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, entries []entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.dir {
			_, err := zw.Create(e.name + "/")
			require.NoError(t, err)
			continue
		}
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.mode != 0 {
			hdr.SetMode(fs.FileMode(e.mode))
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// narBytes writes a NAR with a directory root. Entries must be sorted.
func narBytes(t *testing.T, entries []entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	nw := nar.NewWriter(&buf)
	require.NoError(t, nw.WriteHeader(&nar.Header{Mode: fs.ModeDir | 0555}))
	for _, e := range entries {
		hdr := &nar.Header{Path: e.name, Mode: fs.FileMode(e.mode)}
		switch {
		case e.dir:
			hdr.Mode = fs.ModeDir | 0555
		case e.link != "":
			hdr.Mode = fs.ModeSymlink | 0777
			hdr.LinkTarget = e.link
		default:
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, nw.WriteHeader(hdr))
		if hdr.Mode.IsRegular() {
			_, err := nw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, nw.Close())
	return buf.Bytes()
}

// narFileBytes writes a NAR whose root is a single regular file
func narFileBytes(t *testing.T, body string, mode fs.FileMode) []byte {
	t.Helper()

	var buf bytes.Buffer
	nw := nar.NewWriter(&buf)
	require.NoError(t, nw.WriteHeader(&nar.Header{Mode: mode, Size: int64(len(body))}))
	_, err := nw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, nw.Close())
	return buf.Bytes()
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// serve publishes files under their map keys and counts the requests
func serve(t *testing.T, files map[string][]byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()

	root := t.TempDir()
	return New(&Config{
		DownloadDir: filepath.Join(root, "downloads"),
		WorkRoot:    filepath.Join(root, "work"),
	})
}
