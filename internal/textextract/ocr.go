package textextract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/resilience"
)

const (
	defaultOCREndpoint = "https://api.mistral.ai/v1/ocr"
	defaultOCRModel    = "mistral-ocr-latest"
)

// RemoteOCR extracts text from scanned PDFs through a hosted OCR API that
// accepts a base64 data URL and returns markdown per page.
type RemoteOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	policy   resilience.Policy
}

// NewRemoteOCR creates a RemoteOCR extractor. Empty model and endpoint take
// the defaults.
func NewRemoteOCR(apiKey, model, endpoint string) *RemoteOCR {
	if model == "" {
		model = defaultOCRModel
	}
	if endpoint == "" {
		endpoint = defaultOCREndpoint
	}
	return &RemoteOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{},
		policy:   resilience.DefaultPolicy(),
	}
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText sends the PDF to the OCR API and joins the page texts.
// Throttling and server errors are retried.
func (m *RemoteOCR) ExtractText(ctx context.Context, data []byte) (string, error) {
	body, err := json.Marshal(ocrRequest{
		Model: m.model,
		Document: ocrDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "textextract: marshal ocr request")
	}

	resp, err := resilience.Retry(ctx, m.policy, "ocr", func(ctx context.Context) (*ocrResponse, error) {
		return m.post(ctx, body)
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i, page := range resp.Pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
	}
	return sb.String(), nil
}

func (m *RemoteOCR) post(ctx context.Context, body []byte) (*ocrResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "textextract: create ocr request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "textextract: ocr api call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "textextract: read ocr response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("textextract: ocr api returned %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out ocrResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "textextract: unmarshal ocr response")
	}
	return &out, nil
}
