// archive.go
package fetch

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"zombiezen.com/go/nix/nar"

	"github.com/arc-language/bundlekit/pkg/core"
)

// Unpack extracts the archive at src into dest, which must already exist.
// Entries that would land outside dest are rejected.
func Unpack(src string, format core.ArchiveFormat, dest string) error {
	switch format {
	case core.FormatZip:
		return unpackZip(src, dest)
	case core.FormatFile:
		return copyFile(src, filepath.Join(dest, filepath.Base(src)), 0755)
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	r, closeFn, err := decompress(bufio.NewReader(f), format)
	if err != nil {
		return err
	}
	defer closeFn()

	switch format {
	case core.FormatNar, core.FormatNarXz:
		return unpackNAR(r, dest)
	default:
		return unpackTar(r, dest)
	}
}

// decompress wraps r according to the compression layer of format
func decompress(r io.Reader, format core.ArchiveFormat) (io.Reader, func(), error) {
	noop := func() {}
	switch format {
	case core.FormatTar, core.FormatNar:
		return r, noop, nil
	case core.FormatTarGz:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzr, func() { gzr.Close() }, nil
	case core.FormatTarXz, core.FormatNarXz:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return xzr, noop, nil
	case core.FormatTarZst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported archive format: %s", format)
	}
}

func unpackTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}
		if target == dest {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := symlink(header.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			linked, err := safeJoin(dest, header.Linkname)
			if err != nil {
				return err
			}
			if err := copyFile(linked, target, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("materializing hard link %s: %w", header.Name, err)
			}
		default:
			// pax headers, devices and fifos carry nothing to install
		}
	}
}

func unpackZip(src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return err
		}
		if target == dest {
			continue
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case mode&fs.ModeSymlink != 0:
			linkTarget, err := readZipEntry(zf)
			if err != nil {
				return err
			}
			if err := symlink(string(linkTarget), target); err != nil {
				return err
			}
		default:
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("opening zip entry %s: %w", zf.Name, err)
			}
			perm := mode.Perm()
			if perm == 0 {
				// archives written on Windows carry no unix mode
				perm = 0644
			}
			err = writeFile(target, rc, perm)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func readZipEntry(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("opening zip entry %s: %w", zf.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func unpackNAR(r io.Reader, dest string) error {
	nr := nar.NewReader(r)

	for {
		hdr, err := nr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading NAR entry: %w", err)
		}

		target, err := safeJoin(dest, hdr.Path)
		if err != nil {
			return err
		}

		switch hdr.Mode.Type() {
		case fs.ModeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case fs.ModeSymlink:
			if err := symlink(hdr.LinkTarget, target); err != nil {
				return err
			}
		case 0:
			if target == dest {
				// a NAR of a single file has no directory around it
				target = filepath.Join(dest, "out")
			}
			perm := fs.FileMode(0644)
			if hdr.Mode&0111 != 0 {
				perm = 0755
			}
			if err := writeFile(target, nr, perm); err != nil {
				return err
			}
		}
	}
}

// safeJoin resolves an archive entry name below dest
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(name, "/")))
	if clean == "." {
		return dest, nil
	}
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	return filepath.Join(dest, clean), nil
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", target, err)
	}

	_, err = io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing file %s: %w", target, err)
	}
	return nil
}

func symlink(oldname, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	if err := os.Symlink(oldname, target); err != nil {
		return fmt.Errorf("creating symlink: %w", err)
	}
	return nil
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeFile(dst, in, perm)
}
