// Package textextract turns document bytes into plain text. PDFs go through
// a configured extractor; plain-text payloads pass through unchanged.
package textextract

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/config"
)

// Extractor extracts text content from PDF bytes.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// NewExtractor creates an Extractor based on config. "auto" tries the native
// reader, then pdftotext, then remote OCR when a key is configured.
func NewExtractor(cfg config.TextExtractConfig) (Extractor, error) {
	switch cfg.Provider {
	case "native", "":
		return NewNativePDF(), nil
	case "pdftotext", "local":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "ocr":
		if cfg.OCRKey == "" {
			return nil, eris.New("textextract: ocr provider requires ocr_key")
		}
		return NewRemoteOCR(cfg.OCRKey, cfg.OCRModel, cfg.OCREndpoint), nil
	case "auto":
		chain := Chain{NewNativePDF(), NewPdfToText(cfg.PdfToTextPath)}
		if cfg.OCRKey != "" {
			chain = append(chain, NewRemoteOCR(cfg.OCRKey, cfg.OCRModel, cfg.OCREndpoint))
		}
		return chain, nil
	default:
		return nil, eris.Errorf("textextract: unknown provider %q", cfg.Provider)
	}
}

// IsPDF reports whether content starts with the PDF magic header.
func IsPDF(content []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(content, "\x00\t\r\n "), []byte("%PDF-"))
}

// Text returns the plain text of content. Non-PDF payloads must be valid
// UTF-8 and are returned as-is.
func Text(ctx context.Context, ext Extractor, content []byte) (string, error) {
	if len(content) == 0 {
		return "", eris.New("textextract: empty document")
	}
	if !IsPDF(content) {
		if !utf8.Valid(content) {
			return "", eris.New("textextract: document is neither PDF nor UTF-8 text")
		}
		return string(content), nil
	}
	if ext == nil {
		return "", eris.New("textextract: no PDF extractor configured")
	}
	return ext.ExtractText(ctx, content)
}

// Chain tries each extractor in order and returns the first non-blank text.
type Chain []Extractor

// ExtractText implements Extractor.
func (c Chain) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	var errs []string
	for _, ext := range c {
		text, err := ext.ExtractText(ctx, pdf)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err != nil {
			errs = append(errs, err.Error())
			zap.L().Debug("textextract: extractor failed, trying next", zap.Error(err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", eris.New("textextract: no text found")
	}
	return "", eris.Errorf("textextract: all extractors failed: %s", strings.Join(errs, "; "))
}
