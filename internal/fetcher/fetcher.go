// Package fetcher retrieves policy documents and mapping tables from HTTP,
// FTP and local sources, and parses the CSV, JSON, XLSX and ZIP formats they
// arrive in.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/config"
)

// MaxDocumentBytes bounds a single fetched document.
const MaxDocumentBytes = 64 << 20

// Downloader opens a remote resource for reading.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Fetcher routes a location to the downloader for its scheme. Bare paths and
// file:// URLs are read from disk.
type Fetcher struct {
	http Downloader
	ftp  Downloader
}

// New builds a Fetcher from the fetch configuration.
func New(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent:  cfg.UserAgent,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxAttempts,
			RatePerSec: cfg.RatePerSec,
		}),
		ftp: NewFTPFetcher(FTPOptions{Timeout: cfg.Timeout}),
	}
}

// Download opens the resource at location.
func (f *Fetcher) Download(ctx context.Context, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, eris.New("fetcher: empty location")
	}

	scheme := ""
	if i := strings.Index(location, "://"); i > 0 {
		scheme = strings.ToLower(location[:i])
	}

	switch scheme {
	case "http", "https":
		return f.http.Download(ctx, location)
	case "ftp":
		return f.ftp.Download(ctx, location)
	case "file":
		u, err := url.Parse(location)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: parse file url")
		}
		return openFile(u.Path)
	case "":
		return openFile(location)
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", scheme)
	}
}

// Fetch reads the whole resource into memory, refusing anything larger than
// MaxDocumentBytes.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	rc, err := f.Download(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, MaxDocumentBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", location)
	}
	if len(data) > MaxDocumentBytes {
		return nil, eris.Errorf("fetcher: %s exceeds %d bytes", location, MaxDocumentBytes)
	}
	return data, nil
}

func openFile(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	return fh, nil
}
