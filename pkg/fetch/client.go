// client.go
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client retrieves artifact bytes over HTTP(S) or from local mirrors
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a client without a request deadline. Downloads are
// bounded by the caller's context.
func NewClient() *Client {
	return NewClientWithTimeout(0)
}

// NewClientWithTimeout creates a new client with custom timeout. The
// timeout covers reading the body; zero means none.
func NewClientWithTimeout(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "bundlekit/1.0",
	}
}

// Open returns a reader for the artifact at rawURL. http(s) URLs are
// requested; file:// URLs and plain paths are opened from disk.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return c.get(ctx, rawURL)
	case "file":
		return os.Open(filepath.FromSlash(u.Path))
	case "":
		return os.Open(rawURL)
	default:
		return nil, fmt.Errorf("unsupported url scheme: %s", u.Scheme)
	}
}

// Download copies the artifact at rawURL to w
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	r, err := c.Open(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	return io.Copy(w, r)
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
