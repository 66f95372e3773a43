package resilience

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Guard bundles the protections applied to one backend: a token-bucket rate
// limit, a circuit breaker and a retry policy.
type Guard struct {
	Name    string
	Limiter *rate.Limiter
	Breaker *Breaker
	Policy  Policy
}

// NewGuard builds a guard. A non-positive ratePerSec disables rate limiting.
func NewGuard(name string, ratePerSec float64, policy Policy, breaker BreakerConfig) *Guard {
	g := &Guard{
		Name:    name,
		Breaker: NewBreaker(name, breaker),
		Policy:  policy,
	}
	if ratePerSec > 0 {
		burst := int(ratePerSec)
		if burst < 1 {
			burst = 1
		}
		g.Limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return g
}

// Do runs fn under the guard. Each attempt waits on the limiter and passes
// through the breaker; retries follow the policy. A nil guard calls fn once.
func Do[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	return Retry(ctx, g.Policy, g.Name, func(ctx context.Context) (T, error) {
		var zero T
		if g.Limiter != nil {
			if err := g.Limiter.Wait(ctx); err != nil {
				return zero, eris.Wrapf(err, "resilience: rate limit wait for %s", g.Name)
			}
		}
		return Call(ctx, g.Breaker, fn)
	})
}
