package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"carscout/config"
	"carscout/httputil"
)

// Provider tries a source's configured strategies in order. Transient
// failures are retried on the same strategy with exponential backoff;
// blocked failures skip straight to the next strategy; fatal failures abort
// the source.
type Provider struct {
	strategies  map[string]Strategy
	maxRetries  int
	backoffBase time.Duration
}

func NewProvider(cfg *config.Config, strategies map[string]Strategy) *Provider {
	return &Provider{
		strategies:  strategies,
		maxRetries:  cfg.Search.MaxRetries,
		backoffBase: cfg.Search.BackoffBase,
	}
}

// NewDefaultProvider wires the full strategy set: direct HTTP through the
// scraping client, the managed render service, and a local headless browser.
func NewDefaultProvider(cfg *config.Config, clients *httputil.Clients) *Provider {
	return NewProvider(cfg, map[string]Strategy{
		StrategyDirect:  NewDirectStrategy(clients.Scraping),
		StrategyRender:  NewRenderStrategy(&cfg.Render, clients.API),
		StrategyBrowser: NewBrowserStrategy(),
	})
}

func (p *Provider) Fetch(ctx context.Context, url string, src *config.SourceConfig) (*Result, error) {
	order := src.Strategies
	if len(order) == 0 {
		order = []string{StrategyDirect}
	}

	var lastErr error
	for _, name := range order {
		strategy, ok := p.strategies[name]
		if !ok {
			log.Printf("fetch: %s: strategy %q not configured, skipping", src.ID, name)
			continue
		}

		markup, err := p.fetchWithRetry(ctx, strategy, url, src)
		if err == nil {
			return &Result{Markup: markup, Strategy: name}, nil
		}
		lastErr = err

		if errors.Is(err, ErrNotConfigured) {
			log.Printf("fetch: %s: %s not configured, skipping: %v", src.ID, name, err)
			continue
		}

		switch ClassOf(err) {
		case ClassBlocked:
			log.Printf("fetch: %s: %s blocked, falling back: %v", src.ID, name, err)
			continue
		case ClassTransient:
			// Retries exhausted; the next strategy may still get through.
			log.Printf("fetch: %s: %s exhausted retries, falling back: %v", src.ID, name, err)
			continue
		default:
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = &Error{Class: ClassFatal, Reason: fmt.Sprintf("no usable strategy for %s", src.ID)}
	}
	return nil, lastErr
}

func (p *Provider) fetchWithRetry(ctx context.Context, strategy Strategy, url string, src *config.SourceConfig) ([]byte, error) {
	var lastErr error
	backoff := p.backoffBase

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		markup, err := strategy.Fetch(ctx, url, src)
		if err == nil {
			return markup, nil
		}
		lastErr = err

		if errors.Is(err, ErrNotConfigured) || ClassOf(err) != ClassTransient || attempt == p.maxRetries {
			return nil, err
		}

		log.Printf("fetch: %s: %s attempt %d/%d failed, backing off %s: %v",
			src.ID, strategy.Name(), attempt, p.maxRetries, backoff, err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}

	return nil, lastErr
}
