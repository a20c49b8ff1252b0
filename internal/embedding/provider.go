// Package embedding defines the external embedding-provider collaborator
// contract and a resilient client wrapper around it: rate-limited with
// golang.org/x/time/rate and circuit-broken with sony/gobreaker, so a slow
// or failing provider degrades gracefully instead of blocking memory writes.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/scrypster/exocortex/pkg/types"
)

// ErrUnavailable wraps types.ErrProviderUnavailable with provider-specific
// context. Callers should treat embedding failure as non-fatal for writes:
// a memory is still created without its vector, and is simply excluded from
// the vector pass until a later embed succeeds.
var ErrUnavailable = types.ErrProviderUnavailable

// Provider embeds free-form text into a fixed-dimension, unit-normalized
// vector. Implementations are external collaborators (an HTTP API, a local
// model server); exocortex never assumes a specific one.
type Provider interface {
	// Embed returns a unit-normalized vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds multiple texts in one call where the underlying
	// provider supports batching; implementations may simply loop over
	// Embed if they don't.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length D this provider produces.
	Dimensions() int
}

// ClientConfig configures the resilient wrapper around a Provider.
type ClientConfig struct {
	// RequestsPerSecond caps the rate of outbound embed calls.
	RequestsPerSecond float64

	// Burst is the rate limiter's burst allowance.
	Burst int

	// MaxFailures is the number of consecutive failures before the circuit
	// breaker opens and Embed calls fail fast with ErrUnavailable.
	MaxFailures uint32

	// OpenTimeout is how long the circuit stays open before allowing a
	// half-open trial request.
	OpenTimeout time.Duration
}

// DefaultClientConfig returns sane defaults for a typical embedding API.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestsPerSecond: 10,
		Burst:             5,
		MaxFailures:       3,
		OpenTimeout:       30 * time.Second,
	}
}

// Client wraps a Provider with rate limiting and a circuit breaker so
// callers (the memory creation pipeline, batch backfill jobs) never block
// indefinitely or hammer a failing provider.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
}

// NewClient wraps provider with the resilience behavior from cfg.
func NewClient(provider Provider, cfg ClientConfig) *Client {
	settings := gobreaker.Settings{
		Name:        "embedding-provider",
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= cfg.MaxFailures },
	}

	return &Client{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

// Embed rate-limits and circuit-breaks a single embed call. On rate-limiter
// wait cancellation, breaker-open rejection, or provider error, it returns
// ErrUnavailable wrapped with the underlying cause.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.provider.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return result.([]float32), nil
}

// Dimensions passes through to the wrapped provider.
func (c *Client) Dimensions() int {
	return c.provider.Dimensions()
}
