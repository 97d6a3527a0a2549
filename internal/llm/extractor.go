package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/sidefx/internal/cache"
)

// Waiter blocks until a call identified by key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Extractor wraps a Provider with response caching and rate limiting.
// A nil provider means the LLM is disabled.
type Extractor struct {
	provider Provider
	config   Config
	cache    cache.Cache
	cacheTTL time.Duration
	limiter  Waiter
}

// ExtractorOption configures an Extractor
type ExtractorOption func(*Extractor)

// WithCache stores responses in c for ttl (0 uses the cache default)
func WithCache(c cache.Cache, ttl time.Duration) ExtractorOption {
	return func(e *Extractor) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithLimiter throttles provider calls through w, keyed by provider name
func WithLimiter(w Waiter) ExtractorOption {
	return func(e *Extractor) {
		e.limiter = w
	}
}

// NewExtractor builds an Extractor from configuration
func NewExtractor(config Config, opts ...ExtractorOption) (*Extractor, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return NewExtractorWithProvider(provider, config, opts...), nil
}

// NewExtractorWithProvider builds an Extractor around an existing provider
func NewExtractorWithProvider(provider Provider, config Config, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		provider: provider,
		config:   config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsEnabled returns true if a provider is configured
func (e *Extractor) IsEnabled() bool {
	return e != nil && e.provider != nil
}

// ProviderName returns the configured provider name, or ""
func (e *Extractor) ProviderName() string {
	if !e.IsEnabled() {
		return ""
	}
	return e.provider.Name()
}

// Available runs the provider's preflight check
func (e *Extractor) Available(ctx context.Context) bool {
	return e.IsEnabled() && e.provider.IsAvailable(ctx)
}

// Extract returns the adverse effects for req, serving repeats from the
// cache. The second return value reports a cache hit.
func (e *Extractor) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, bool, error) {
	if !e.IsEnabled() {
		return nil, false, fmt.Errorf("LLM extraction is disabled")
	}

	if req.Model == "" {
		req.Model = e.config.Model
	}

	key := e.cacheKey(req)
	if e.cache != nil {
		if data, found := e.cache.Get(key); found {
			var resp ExtractResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				return &resp, true, nil
			}
			_ = e.cache.Delete(key)
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, e.provider.Name()); err != nil {
			return nil, false, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := e.provider.Extract(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", e.provider.Name(), err)
	}

	if e.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := e.cache.Set(key, data, e.cacheTTL); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to cache LLM response: %v\n", err)
			}
		}
	}

	return resp, false, nil
}

func (e *Extractor) cacheKey(req ExtractRequest) string {
	hint := ""
	if req.Table != nil {
		hint = "hint"
	}
	return cache.Key(e.provider.Name(), req.Model, req.Prompt, req.DrugName, hint, req.Content)
}
