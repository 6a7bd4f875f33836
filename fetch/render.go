package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"carscout/config"
)

// RenderStrategy routes the request through a managed browser-rendering
// service. Supports a race mode: a non-rendered and a rendered request are
// issued together and the first response with markup above the minimum size
// wins.
type RenderStrategy struct {
	cfg    *config.RenderConfig
	client *http.Client
}

func NewRenderStrategy(cfg *config.RenderConfig, client *http.Client) *RenderStrategy {
	return &RenderStrategy{cfg: cfg, client: client}
}

func (s *RenderStrategy) Name() string {
	return StrategyRender
}

func (s *RenderStrategy) Fetch(parent context.Context, target string, src *config.SourceConfig) ([]byte, error) {
	if s.cfg.APIKey == "" {
		return nil, fmt.Errorf("render: RENDER_API_KEY not set: %w", ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(parent, src.Timeout())
	defer cancel()

	if !s.cfg.Race {
		markup, err := s.fetchOnce(ctx, target, true)
		if err != nil {
			return nil, timeoutError(parent, s.Name(), src.Timeout(), err)
		}
		return markup, nil
	}

	type raceResult struct {
		markup   []byte
		rendered bool
		err      error
	}
	results := make(chan raceResult, 2)
	for _, rendered := range []bool{false, true} {
		rendered := rendered
		go func() {
			markup, err := s.fetchOnce(ctx, target, rendered)
			results <- raceResult{markup: markup, rendered: rendered, err: err}
		}()
	}

	var lastErr error
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if r.err == nil && len(r.markup) >= minMarkupBytes {
				log.Printf("render: race winner for %s: rendered=%v (%d bytes)", src.ID, r.rendered, len(r.markup))
				return r.markup, nil
			}
			if r.err != nil {
				lastErr = r.err
			} else {
				lastErr = &Error{Class: ClassBlocked, Strategy: s.Name(), Reason: "undersized response body"}
			}
		case <-ctx.Done():
			return nil, timeoutError(parent, s.Name(), src.Timeout(), ctx.Err())
		}
	}
	return nil, timeoutError(parent, s.Name(), src.Timeout(), lastErr)
}

func (s *RenderStrategy) fetchOnce(ctx context.Context, target string, rendered bool) ([]byte, error) {
	params := url.Values{}
	params.Set("api_key", s.cfg.APIKey)
	params.Set("url", target)
	params.Set("render_js", strconv.FormatBool(rendered))
	if rendered {
		params.Set("wait", strconv.Itoa(s.cfg.WaitMS))
		params.Set("block_resources", "true")
	}
	if s.cfg.PremiumProxy {
		params.Set("premium_proxy", "true")
		params.Set("country_code", "nl")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Class: ClassFatal, Strategy: s.Name(), Reason: "bad request", Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Class: ClassTransient, Strategy: s.Name(), Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &Error{Class: ClassTransient, Strategy: s.Name(), Reason: "read body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, s.vendorError(resp.StatusCode, body)
	}

	if m := blockedMarker(body); m != "" {
		return nil, &Error{Class: ClassBlocked, Strategy: s.Name(), Reason: "anti-bot challenge: " + m}
	}

	return body, nil
}

// vendorError maps the service's error body to a failure class. The vendor
// embeds a machine-readable code in the JSON body on non-200 responses.
func (s *RenderStrategy) vendorError(status int, body []byte) error {
	var payload struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	reason := fmt.Sprintf("render service status %d", status)
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			reason = payload.Error
		} else if payload.Reason != "" {
			reason = payload.Reason
		}
	}

	class := classifyStatus(status)
	lower := strings.ToLower(reason)
	if strings.Contains(lower, "could not render") || strings.Contains(lower, "blocked") {
		class = ClassBlocked
	}

	return &Error{Class: class, Strategy: s.Name(), Status: status, Reason: reason}
}
