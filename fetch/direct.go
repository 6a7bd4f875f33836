package fetch

import (
	"context"
	"io"
	"net/http"

	"carscout/config"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// DirectStrategy is a plain HTTP GET. Fastest, fails on JS-rendered pages
// and bot walls.
type DirectStrategy struct {
	client *http.Client
}

func NewDirectStrategy(client *http.Client) *DirectStrategy {
	return &DirectStrategy{client: client}
}

func (s *DirectStrategy) Name() string {
	return StrategyDirect
}

func (s *DirectStrategy) Fetch(parent context.Context, url string, src *config.SourceConfig) ([]byte, error) {
	ctx, cancel := context.WithTimeout(parent, src.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, &Error{Class: ClassFatal, Strategy: s.Name(), Reason: "bad request", Err: err}
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutError(parent, s.Name(), src.Timeout(), ctx.Err())
		}
		return nil, &Error{Class: ClassTransient, Strategy: s.Name(), Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutError(parent, s.Name(), src.Timeout(), ctx.Err())
		}
		return nil, &Error{Class: ClassTransient, Strategy: s.Name(), Reason: "read body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Class:    classifyStatus(resp.StatusCode),
			Strategy: s.Name(),
			Status:   resp.StatusCode,
			Reason:   "unexpected status",
		}
	}

	if m := blockedMarker(body); m != "" {
		return nil, &Error{Class: ClassBlocked, Strategy: s.Name(), Reason: "anti-bot challenge: " + m}
	}
	if len(body) < minMarkupBytes {
		return nil, &Error{Class: ClassBlocked, Strategy: s.Name(), Reason: "undersized response body"}
	}

	return body, nil
}
