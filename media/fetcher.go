package media

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultFetchTimeout = 30 * time.Second

// Fetcher downloads remote files into local temp files.
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
	TempDir string // empty means os.TempDir()
}

func NewFetcher(client *http.Client, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{Client: client, Timeout: timeout}
}

// Fetch downloads rawURL into a temp file. On any failure the temp file is
// removed. The returned Upload is Materialized; Close it when done.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Upload, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, remoteFetchError("fetch", err, "invalid url %q", rawURL)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tmp, err := os.CreateTemp(f.TempDir, "media_")
	if err != nil {
		return nil, remoteFetchError("fetch", err, "create temp file")
	}
	tmpPath := tmp.Name()

	if err := f.download(ctx, u.String(), tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, remoteFetchError("fetch", err, "close temp file")
	}

	contentType := ""
	if m, err := mimetype.DetectFile(tmpPath); err == nil {
		contentType = m.String()
	}

	return &Upload{
		Path:         tmpPath,
		Name:         nameFromURL(u),
		ContentType:  contentType,
		Materialized: true,
	}, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return remoteFetchError("fetch", err, "build request for %q", rawURL)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return remoteFetchError("fetch", err, "request %q", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteFetchError("fetch", nil, "%q returned status %d", rawURL, resp.StatusCode)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return remoteFetchError("fetch", err, "read body of %q", rawURL)
	}
	return nil
}

func nameFromURL(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "file"
	}
	return base
}
