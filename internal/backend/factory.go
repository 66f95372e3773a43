package backend

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/consensus"
	"github.com/sells-group/terms-extractor/internal/resilience"
	"github.com/sells-group/terms-extractor/pkg/anthropic"
)

// FromConfig builds the declared backends in order, plus their seed
// timeouts.
func FromConfig(cfg *config.Config) ([]consensus.Backend, map[string]time.Duration, error) {
	var (
		out    []consensus.Backend
		seeds  = make(map[string]time.Duration, len(cfg.Backends))
		client anthropic.Client
	)
	for _, b := range cfg.Backends {
		policy := resilience.DefaultPolicy()
		if b.MaxAttempts > 0 {
			policy.Attempts = b.MaxAttempts
		}
		guard := resilience.NewGuard(b.ID, b.RatePerSec, policy, resilience.BreakerConfig{})

		switch b.Provider {
		case "anthropic":
			if client == nil {
				client = anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.BaseURL)
			}
			out = append(out, NewAnthropic(b.ID, b.Model, cfg.Anthropic.MaxTokens, client, guard))
		case "ollama", "":
			llm, err := NewOllama(b.ID, cfg.Ollama.ServerURL, b.Model, guard)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, llm)
		default:
			return nil, nil, eris.Errorf("backend: unknown provider %q for %s", b.Provider, b.ID)
		}
		seeds[b.ID] = b.Timeout
	}
	return out, seeds, nil
}
