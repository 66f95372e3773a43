package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terms-extractor/internal/config"
)

type stubDownloader struct {
	body string
	got  string
}

func (s *stubDownloader) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.got = url
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestFetcher_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "A1.txt")
	require.NoError(t, os.WriteFile(path, []byte("보험기간 종신"), 0o644))

	f := New(config.FetchConfig{})
	data, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "보험기간 종신", string(data))

	data, err = f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "보험기간 종신", string(data))
}

func TestFetcher_MissingFile(t *testing.T) {
	_, err := New(config.FetchConfig{}).Fetch(context.Background(), filepath.Join(t.TempDir(), "none.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: open")
}

func TestFetcher_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "terms-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	f := New(config.FetchConfig{UserAgent: "terms-test", Timeout: 5 * time.Second, RatePerSec: 100, MaxAttempts: 1})
	data, err := f.Fetch(context.Background(), srv.URL+"/A1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestFetcher_RoutesFTP(t *testing.T) {
	stub := &stubDownloader{body: "ftp body"}
	f := &Fetcher{http: &stubDownloader{}, ftp: stub}

	data, err := f.Fetch(context.Background(), "FTP://ftp.example.com/A1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "ftp body", string(data))
	assert.Equal(t, "FTP://ftp.example.com/A1.pdf", stub.got)
}

func TestFetcher_Errors(t *testing.T) {
	f := New(config.FetchConfig{})

	_, err := f.Fetch(context.Background(), "")
	require.Error(t, err)

	_, err = f.Fetch(context.Background(), "s3://bucket/A1.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scheme "s3"`)
}
