package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carscout/models"
	"carscout/services"
)

// LogFunc lets workers write into the searchable log table without importing
// the store directly.
type LogFunc func(level models.LogLevel, component, message string)

// NoOpLogger discards worker log entries.
func NoOpLogger(level models.LogLevel, component, message string) {}

// HealthcheckWorker rechecks archived listings that have not been seen in a
// while and marks the dead ones as delisted.
type HealthcheckWorker struct {
	archive    *services.ArchiveService
	httpClient *http.Client
	triggerCh  chan struct{}
	logFunc    LogFunc
}

func NewHealthcheckWorker(archive *services.ArchiveService, proxyURL string) *HealthcheckWorker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if proxyParsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyParsed)
			log.Printf("Healthcheck worker using proxy: %s", proxyParsed.Host)
		}
	}

	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HealthcheckWorker{
		archive:    archive,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *HealthcheckWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run a batch immediately.
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// CheckResult is the outcome of probing a listing URL.
type CheckResult struct {
	IsLive     bool
	StatusCode int
	Error      error
}

// Check does a lightweight HEAD probe. Anything but a hard 404/410 or a
// redirect back to the site's search page counts as live; blocked or flaky
// responses must not delist a real car.
func (w *HealthcheckWorker) Check(ctx context.Context, listingURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, listingURL, nil)
	if err != nil {
		return CheckResult{Error: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CheckResult{Error: err}
	}
	resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		result.IsLive = false
	case http.StatusMovedPermanently, http.StatusFound:
		result.IsLive = !isDelistRedirect(resp.Header.Get("Location"))
	default:
		result.IsLive = true
	}
	return result
}

func isDelistRedirect(location string) bool {
	lower := strings.ToLower(location)
	for _, pattern := range []string{"/zoeken", "/search", "/occasions?", "notfound", "niet-gevonden", "error"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Run starts the healthcheck loop. A batch runs every interval or on Trigger.
func (w *HealthcheckWorker) Run(ctx context.Context, staleAfter time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, staleAfter, batchSize)
		case <-w.triggerCh:
			log.Println("Healthcheck worker triggered manually")
			w.processBatch(ctx, staleAfter, batchSize)
		}
	}
}

func (w *HealthcheckWorker) processBatch(ctx context.Context, staleAfter time.Duration, batchSize int) {
	stale, err := w.archive.ListStale(ctx, staleAfter, batchSize)
	if err != nil {
		log.Printf("Healthcheck: query error: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	log.Printf("Healthcheck: checking %d stale listings", len(stale))

	var checked, delisted int
	for _, listing := range stale {
		if ctx.Err() != nil {
			return
		}

		result := w.Check(ctx, listing.URL)
		checked++

		if result.Error != nil {
			log.Printf("Healthcheck: error checking %s: %v", listing.URL, result.Error)
			w.archive.TouchListing(ctx, listing.CanonicalID)
			continue
		}

		if !result.IsLive {
			log.Printf("Healthcheck: listing delisted (status %d): %s", result.StatusCode, listing.URL)
			if err := w.archive.MarkDelisted(ctx, listing.CanonicalID); err != nil {
				log.Printf("Healthcheck: failed to mark delisted: %v", err)
			} else {
				delisted++
			}
		} else {
			w.archive.TouchListing(ctx, listing.CanonicalID)
		}

		// Rate limit between probes
		time.Sleep(500 * time.Millisecond)
	}

	if delisted > 0 {
		w.logFunc(models.LogLevelInfo, "healthcheck",
			fmt.Sprintf("checked %d listings, %d delisted", checked, delisted))
	}
}
