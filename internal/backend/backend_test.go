package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/resilience"
	"github.com/sells-group/terms-extractor/pkg/anthropic"
)

func TestParseResult(t *testing.T) {
	text := "Here you go:\n```json\n" +
		`{"insuTerm": "종신", "payTerm": ["10년납", "20년납"], "ageRange": "15~60", "renew": null, "specialNotes": "note {braces}", "extra": 1}` +
		"\n```"
	r, err := ParseResult(text)
	require.NoError(t, err)
	assert.Equal(t, "종신", r.Coverage)
	assert.Equal(t, "10년납, 20년납", r.Payment)
	assert.Equal(t, "15~60", r.AgeRange)
	assert.Equal(t, model.Sentinel, r.Renewal)
	assert.Equal(t, "note {braces}", r.Notes)
}

func TestParseResult_Errors(t *testing.T) {
	_, err := ParseResult("no json here")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseResult(`{"insuTerm": "종신"`)
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseResult(`{"foo": "bar"}`)
	assert.Error(t, err)
}

type fakeClient struct {
	calls int
	errs  []error
	text  string
	last  anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.last = req
	f.calls++
	if len(f.errs) >= f.calls && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}}}, nil
}

func fastGuard(id string) *resilience.Guard {
	return resilience.NewGuard(id, 0, resilience.Policy{Attempts: 2, Base: time.Millisecond, Max: time.Millisecond}, resilience.BreakerConfig{})
}

func TestAnthropic_Invoke(t *testing.T) {
	fc := &fakeClient{text: `{"insuTerm":"90세만기","payTerm":"20년납"}`}
	b := NewAnthropic("haiku", "claude-haiku-4-5-20251001", 0, fc, fastGuard("haiku"))

	r, err := b.Invoke(context.Background(), "Document: ...")
	require.NoError(t, err)
	assert.Equal(t, "haiku", b.ID())
	assert.Equal(t, "90세만기", r.Coverage)
	assert.Equal(t, int64(1024), fc.last.MaxTokens)
	require.Len(t, fc.last.System, 1)
	assert.NotNil(t, fc.last.System[0].CacheControl)
}

func TestAnthropic_InvokePermanentError(t *testing.T) {
	fc := &fakeClient{errs: []error{errors.New("invalid request"), nil}, text: `{"insuTerm":"종신"}`}
	b := NewAnthropic("haiku", "m", 512, fc, fastGuard("haiku"))

	_, err := b.Invoke(context.Background(), "p")
	assert.Error(t, err)
	assert.Equal(t, 1, fc.calls)
}

type fakeGenerator struct {
	content string
	err     error
	msgs    []llms.MessageContent
}

func (f *fakeGenerator) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.msgs = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func TestLLM_Invoke(t *testing.T) {
	g := &fakeGenerator{content: `{"insuTerm":"종신","payTerm":"전기납","renew":"비갱신형"}`}
	b := NewLLM("llama", g, nil)

	r, err := b.Invoke(context.Background(), "Document: ...")
	require.NoError(t, err)
	assert.Equal(t, "전기납", r.Payment)
	assert.Equal(t, "비갱신형", r.Renewal)
	require.Len(t, g.msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, g.msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, g.msgs[1].Role)
}

func TestLLM_InvokeErrors(t *testing.T) {
	_, err := NewLLM("llama", &fakeGenerator{err: errors.New("down")}, nil).Invoke(context.Background(), "p")
	assert.Error(t, err)

	_, err = NewLLM("llama", &fakeGenerator{content: "I cannot help"}, nil).Invoke(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestNewOllama_OpenAICompatibleEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/chat/completions"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "llama3.1:8b",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `{"insuTerm":"종신","payTerm":"20년납"}`},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer ts.Close()

	b, err := NewOllama("llama", ts.URL, "llama3.1:8b", nil)
	require.NoError(t, err)

	r, err := b.Invoke(context.Background(), "Document: ...")
	require.NoError(t, err)
	assert.Equal(t, "종신", r.Coverage)
	assert.Equal(t, "20년납", r.Payment)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Backends: config.DefaultBackends(),
		Ollama:   config.OllamaConfig{ServerURL: "http://localhost:11434"},
	}
	cfg.Backends = append(cfg.Backends, config.BackendConfig{ID: "haiku", Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Timeout: 15 * time.Second})
	cfg.Anthropic.Key = "test-key"

	backends, seeds, err := FromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, backends, 4)
	assert.Equal(t, "llama", backends[0].ID())
	assert.Equal(t, "haiku", backends[3].ID())
	assert.Equal(t, 10*time.Second, seeds["llama"])
	assert.Equal(t, 8*time.Second, seeds["mistral"])
	assert.Equal(t, 15*time.Second, seeds["haiku"])

	cfg.Backends = []config.BackendConfig{{ID: "x", Provider: "bogus"}}
	_, _, err = FromConfig(cfg)
	assert.Error(t, err)
}
