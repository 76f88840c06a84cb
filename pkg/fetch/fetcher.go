// fetcher.go
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/arc-language/bundlekit/pkg/core"
)

// Config configures the fetcher
type Config struct {
	DownloadDir string        // verified archives, reused across runs
	WorkRoot    string        // unpacked trees land in WorkRoot/<id>/src
	Timeout     time.Duration // whole request including body; zero is unbounded
	Debug       bool
	Logger      *log.Logger
}

// Fetcher downloads, verifies and unpacks component artifacts
type Fetcher struct {
	client *Client
	config *Config
	logger *log.Logger
}

var _ core.Fetcher = (*Fetcher)(nil)

// New creates a fetcher
func New(cfg *Config) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = log.New(os.Stdout, "[DEBUG] ", log.LstdFlags)
		} else {
			logger = log.New(io.Discard, "", 0)
		}
	}

	return &Fetcher{
		client: NewClientWithTimeout(cfg.Timeout),
		config: cfg,
		logger: logger,
	}
}

// SourceDir is where Fetch leaves the unpacked tree of a component
func (f *Fetcher) SourceDir(id string) string {
	return filepath.Join(f.config.WorkRoot, id, "src")
}

// Fetch downloads the component archive, verifies it against spec.SHA256 and
// unpacks it into a fresh SourceDir. Any previous tree is removed first, so
// a failed fetch leaves nothing behind that could pass for a usable source.
func (f *Fetcher) Fetch(ctx context.Context, spec *core.ComponentSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	format, err := spec.Format()
	if err != nil {
		return "", &core.FetchError{Component: spec.ID, URL: spec.URL, Err: err}
	}

	dest := f.SourceDir(spec.ID)
	f.logger.Printf("Fetching %s", spec.ID)
	f.logger.Printf("  URL: %s", spec.URL)
	f.logger.Printf("  Format: %s", format)

	if err := os.RemoveAll(dest); err != nil {
		return "", &core.FetchError{Component: spec.ID, URL: spec.URL, Err: fmt.Errorf("clearing %s: %w", dest, err)}
	}

	archivePath := filepath.Join(f.config.DownloadDir, spec.ID+"-"+artifactName(spec.URL))
	if err := f.download(ctx, spec.ID, spec.URL, spec.SHA256, archivePath); err != nil {
		return "", err
	}

	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", &core.FetchError{Component: spec.ID, URL: spec.URL, Err: err}
	}
	tmp, err := os.MkdirTemp(parent, ".src-*")
	if err != nil {
		return "", &core.FetchError{Component: spec.ID, URL: spec.URL, Err: err}
	}

	f.logger.Printf("Extracting %s -> %s", archivePath, dest)
	if format == core.FormatFile {
		err = copyFile(archivePath, filepath.Join(tmp, artifactName(spec.URL)), 0755)
	} else {
		err = Unpack(archivePath, format, tmp)
	}
	if err != nil {
		os.RemoveAll(tmp)
		return "", &core.FetchError{Component: spec.ID, URL: spec.URL, Err: fmt.Errorf("unpacking: %w", err)}
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.RemoveAll(tmp)
		return "", &core.FetchError{Component: spec.ID, URL: spec.URL, Err: err}
	}

	f.logger.Printf("  ✓ %s unpacked", spec.ID)
	return dest, nil
}

// FetchFile downloads a single file, verifies it and moves it to dest.
// dest is left untouched when verification fails.
func (f *Fetcher) FetchFile(ctx context.Context, id, rawURL, sha256Hex, dest string) error {
	if !core.IsSHA256(sha256Hex) {
		return &core.IntegrityError{Component: id, URL: rawURL, Expected: sha256Hex, Got: "(not computed: no pinned hash)"}
	}

	tmp := dest + ".download"
	if err := f.download(ctx, id, rawURL, sha256Hex, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return &core.FetchError{Component: id, URL: rawURL, Err: err}
	}
	return nil
}

// download leaves a verified copy of rawURL at target. A verified file
// already at target is reused; anything else there is replaced.
func (f *Fetcher) download(ctx context.Context, id, rawURL, expected, target string) error {
	if got, err := ComputeFileHash(target); err == nil {
		if hashesEqual(got, expected) {
			f.logger.Printf("  ✓ Reusing verified download %s", target)
			return nil
		}
		f.logger.Printf("  ⚠️  Cached %s does not verify, downloading again", target)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return &core.FetchError{Component: id, URL: rawURL, Err: fmt.Errorf("creating directory: %w", err)}
	}

	part := target + ".part"
	out, err := os.Create(part)
	if err != nil {
		return &core.FetchError{Component: id, URL: rawURL, Err: fmt.Errorf("creating file: %w", err)}
	}

	hasher := sha256.New()
	written, err := f.client.Download(ctx, rawURL, io.MultiWriter(out, hasher))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return &core.FetchError{Component: id, URL: rawURL, Err: err}
	}
	f.logger.Printf("  Downloaded %d bytes", written)

	got := hex.EncodeToString(hasher.Sum(nil))
	f.logger.Printf("  Expected: %s", expected)
	f.logger.Printf("  Actual:   %s", got)
	if !hashesEqual(got, expected) {
		os.Remove(part)
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.logger.Printf("  ⚠️  Warning: failed to remove stale %s: %v", target, err)
		}
		return &core.IntegrityError{Component: id, URL: rawURL, Expected: expected, Got: got}
	}

	if err := os.Rename(part, target); err != nil {
		os.Remove(part)
		return &core.FetchError{Component: id, URL: rawURL, Err: err}
	}
	f.logger.Printf("  ✓ Hashes match!")
	return nil
}

// artifactName derives a file name from a URL, keeping its archive suffix
func artifactName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return filepath.Base(rawURL)
}
