package textextract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/resilience"
)

var fakePDF = []byte("%PDF-1.4 test content")

func TestNewExtractor_Native(t *testing.T) {
	ext, err := NewExtractor(config.TextExtractConfig{})
	require.NoError(t, err)
	assert.IsType(t, &NativePDF{}, ext)
}

func TestNewExtractor_PdfToText(t *testing.T) {
	ext, err := NewExtractor(config.TextExtractConfig{Provider: "pdftotext", PdfToTextPath: "/usr/bin/pdftotext"})
	require.NoError(t, err)
	require.IsType(t, &PdfToText{}, ext)
	assert.Equal(t, "/usr/bin/pdftotext", ext.(*PdfToText).binPath)
}

func TestNewExtractor_OCRMissingKey(t *testing.T) {
	_, err := NewExtractor(config.TextExtractConfig{Provider: "ocr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr provider requires ocr_key")
}

func TestNewExtractor_Auto(t *testing.T) {
	ext, err := NewExtractor(config.TextExtractConfig{Provider: "auto"})
	require.NoError(t, err)
	assert.Len(t, ext.(Chain), 2)

	ext, err = NewExtractor(config.TextExtractConfig{Provider: "auto", OCRKey: "k"})
	require.NoError(t, err)
	assert.Len(t, ext.(Chain), 3)
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(config.TextExtractConfig{Provider: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "unknown"`)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF(fakePDF))
	assert.True(t, IsPDF([]byte("\n%PDF-1.7")))
	assert.False(t, IsPDF([]byte("보험기간: 종신")))
	assert.False(t, IsPDF(nil))
}

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) ExtractText(context.Context, []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestText_PlainPassthrough(t *testing.T) {
	stub := &stubExtractor{text: "unused"}
	text, err := Text(context.Background(), stub, []byte("보험기간: 종신"))
	require.NoError(t, err)
	assert.Equal(t, "보험기간: 종신", text)
	assert.Zero(t, stub.calls)
}

func TestText_PDFUsesExtractor(t *testing.T) {
	stub := &stubExtractor{text: "납입기간: 20년납"}
	text, err := Text(context.Background(), stub, fakePDF)
	require.NoError(t, err)
	assert.Equal(t, "납입기간: 20년납", text)
}

func TestText_Rejects(t *testing.T) {
	_, err := Text(context.Background(), nil, nil)
	assert.Error(t, err)
	_, err = Text(context.Background(), nil, []byte{0xff, 0xfe, 0x00})
	assert.Error(t, err)
	_, err = Text(context.Background(), nil, fakePDF)
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	failing := &stubExtractor{err: errors.New("no text layer")}
	blank := &stubExtractor{text: "   "}
	good := &stubExtractor{text: "종신"}

	text, err := Chain{failing, blank, good}.ExtractText(context.Background(), fakePDF)
	require.NoError(t, err)
	assert.Equal(t, "종신", text)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, blank.calls)
}

func TestChain_AllFail(t *testing.T) {
	_, err := Chain{&stubExtractor{err: errors.New("a")}, &stubExtractor{err: errors.New("b")}}.
		ExtractText(context.Background(), fakePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a; b")

	_, err = Chain{&stubExtractor{}}.ExtractText(context.Background(), fakePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text found")
}

func TestNativePDF_Malformed(t *testing.T) {
	_, err := NewNativePDF().ExtractText(context.Background(), fakePDF)
	assert.Error(t, err)
}

func TestNativePDF_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNativePDF().ExtractText(ctx, fakePDF)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPdfToText_BinPath(t *testing.T) {
	assert.Equal(t, "pdftotext", NewPdfToText("").binPath)
	assert.Equal(t, "/custom/pdftotext", NewPdfToText("/custom/pdftotext").binPath)
}

func TestPdfToText_BinaryNotFound(t *testing.T) {
	_, err := NewPdfToText("/nonexistent/pdftotext").ExtractText(context.Background(), fakePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestPdfToText_Success(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "pdftotext")
	script := "#!/bin/sh\necho '보험기간: 종신'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	text, err := NewPdfToText(fakeBin).ExtractText(context.Background(), fakePDF)
	require.NoError(t, err)
	assert.Contains(t, text, "보험기간: 종신")
}

func fastOCR(url string) *RemoteOCR {
	m := NewRemoteOCR("test-key", "test-model", url)
	m.policy = resilience.Policy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
	return m
}

func TestRemoteOCR_Defaults(t *testing.T) {
	m := NewRemoteOCR("key", "", "")
	assert.Equal(t, defaultOCRModel, m.model)
	assert.Equal(t, defaultOCREndpoint, m.endpoint)
}

func TestRemoteOCR_ExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ocrRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ocrResponse{Pages: []ocrPage{ //nolint:errcheck
			{Index: 0, Markdown: "보험기간: 종신"},
			{Index: 1, Markdown: "납입기간: 20년납"},
		}})
	}))
	defer srv.Close()

	text, err := fastOCR(srv.URL).ExtractText(context.Background(), fakePDF)
	require.NoError(t, err)
	assert.Equal(t, "보험기간: 종신\n\n납입기간: 20년납", text)
}

func TestRemoteOCR_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ocrResponse{Pages: []ocrPage{{Markdown: "종신"}}}) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := fastOCR(srv.URL).ExtractText(context.Background(), fakePDF)
	require.NoError(t, err)
	assert.Equal(t, "종신", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteOCR_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := fastOCR(srv.URL).ExtractText(context.Background(), fakePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr api returned 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := fastOCR(srv.URL).ExtractText(context.Background(), fakePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal ocr response")
}
