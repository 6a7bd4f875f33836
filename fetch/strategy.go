package fetch

import (
	"context"

	"carscout/config"
)

// Strategy names as used in source yaml files.
const (
	StrategyDirect  = "direct"
	StrategyRender  = "render"
	StrategyBrowser = "browser"
)

// Result is the raw markup of one successful fetch plus the strategy that
// produced it.
type Result struct {
	Markup   []byte
	Strategy string
}

// Strategy executes a single fetch attempt against one URL. Implementations
// return a classified *Error on failure so the provider can decide between
// retry, fallback and abort.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, url string, src *config.SourceConfig) ([]byte, error)
}
