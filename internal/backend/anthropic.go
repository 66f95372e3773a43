package backend

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/prompt"
	"github.com/sells-group/terms-extractor/internal/resilience"
	"github.com/sells-group/terms-extractor/pkg/anthropic"
)

// Anthropic is a backend served by the Anthropic Messages API.
type Anthropic struct {
	id        string
	model     string
	maxTokens int64
	client    anthropic.Client
	guard     *resilience.Guard
}

// NewAnthropic creates a hosted backend.
func NewAnthropic(id, modelName string, maxTokens int64, client anthropic.Client, guard *resilience.Guard) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{id: id, model: modelName, maxTokens: maxTokens, client: client, guard: guard}
}

// ID returns the backend identifier.
func (a *Anthropic) ID() string { return a.id }

// Invoke sends the prompt and parses the reply.
func (a *Anthropic) Invoke(ctx context.Context, p string) (model.Result, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      anthropic.CachedSystem(prompt.Instructions),
		Messages:    []anthropic.Message{{Role: "user", Content: p}},
		Temperature: &temp,
	}

	resp, err := resilience.Do(ctx, a.guard, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := a.client.CreateMessage(ctx, req)
		if err != nil {
			if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
				return nil, resilience.NewTransientError(err, code)
			}
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return model.Result{}, eris.Wrapf(err, "backend %s: invoke", a.id)
	}

	resp.Usage.LogCost(a.model, a.id)
	r, err := ParseResult(resp.Text())
	if err != nil {
		return model.Result{}, eris.Wrapf(err, "backend %s: parse", a.id)
	}
	return r, nil
}
