package fetch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/playwright-community/playwright-go"

	"carscout/config"
)

// BrowserStrategy drives a local headless browser. Slowest and heaviest,
// used only when the cheaper strategies are exhausted or not configured.
type BrowserStrategy struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserStrategy() *BrowserStrategy {
	return &BrowserStrategy{}
}

func (s *BrowserStrategy) Name() string {
	return StrategyBrowser
}

func (s *BrowserStrategy) ensureBrowser() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	var err error
	s.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	s.browser, err = s.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	s.initialized = true
	return nil
}

func (s *BrowserStrategy) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		s.pw.Stop()
	}
	s.initialized = false
}

func (s *BrowserStrategy) Fetch(ctx context.Context, url string, src *config.SourceConfig) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureBrowser(); err != nil {
		return nil, fmt.Errorf("browser unavailable (%v): %w", err, ErrNotConfigured)
	}

	bctx, err := s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(browserUA),
		Locale:    playwright.String("nl-NL"),
	})
	if err != nil {
		return nil, &Error{Class: ClassTransient, Strategy: s.Name(), Reason: "new context", Err: err}
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, &Error{Class: ClassTransient, Strategy: s.Name(), Reason: "new page", Err: err}
	}

	timeout := float64(src.Timeout().Milliseconds())
	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, &Error{Class: ClassTransient, Strategy: s.Name(), Reason: "navigation failed", Err: err}
	}

	// Let listing grids finish their XHRs; keep it short of the timeout.
	page.WaitForTimeout(1500)

	content, err := page.Content()
	if err != nil {
		return nil, &Error{Class: ClassTransient, Strategy: s.Name(), Reason: "read content", Err: err}
	}

	markup := []byte(content)
	if m := blockedMarker(markup); m != "" {
		log.Printf("browser: %s blocked: %s", src.ID, m)
		return nil, &Error{Class: ClassBlocked, Strategy: s.Name(), Reason: "anti-bot challenge: " + m}
	}
	if len(markup) < minMarkupBytes {
		return nil, &Error{Class: ClassBlocked, Strategy: s.Name(), Reason: "undersized response body"}
	}

	return markup, nil
}
