package backend

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/prompt"
	"github.com/sells-group/terms-extractor/internal/resilience"
)

// Generator is the slice of llms.Model the backend needs.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LLM is a backend served by a local model through an OpenAI-compatible
// endpoint (Ollama exposes one under /v1).
type LLM struct {
	id    string
	gen   Generator
	guard *resilience.Guard
}

// NewOllama connects to an Ollama server for the given model.
func NewOllama(id, serverURL, modelName string, guard *resilience.Guard) (*LLM, error) {
	base := strings.TrimRight(serverURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	llm, err := openai.New(
		openai.WithBaseURL(base),
		openai.WithModel(modelName),
		openai.WithToken("ollama"),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "backend %s: create ollama client", id)
	}
	return NewLLM(id, llm, guard), nil
}

// NewLLM wraps any generator.
func NewLLM(id string, gen Generator, guard *resilience.Guard) *LLM {
	return &LLM{id: id, gen: gen, guard: guard}
}

// ID returns the backend identifier.
func (l *LLM) ID() string { return l.id }

// Invoke sends the prompt and parses the reply.
func (l *LLM) Invoke(ctx context.Context, p string) (model.Result, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt.Instructions),
		llms.TextParts(llms.ChatMessageTypeHuman, p),
	}

	resp, err := resilience.Do(ctx, l.guard, func(ctx context.Context) (*llms.ContentResponse, error) {
		return l.gen.GenerateContent(ctx, msgs, llms.WithTemperature(0))
	})
	if err != nil {
		return model.Result{}, eris.Wrapf(err, "backend %s: invoke", l.id)
	}
	if len(resp.Choices) == 0 {
		return model.Result{}, eris.Errorf("backend %s: empty response", l.id)
	}

	r, err := ParseResult(resp.Choices[0].Content)
	if err != nil {
		return model.Result{}, eris.Wrapf(err, "backend %s: parse", l.id)
	}
	return r, nil
}
