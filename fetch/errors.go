package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured marks a strategy that cannot run with the current
// configuration (missing render API key, browser not installed). The
// provider skips such strategies the same way it skips unknown strategy
// names, instead of aborting the source.
var ErrNotConfigured = errors.New("strategy not configured")

// Class partitions fetch failures by what the caller should do next:
// retry the same strategy, fall back to the next one, or give up.
type Class string

const (
	// ClassTransient failures (429, 5xx, connection reset) are retried on
	// the same strategy with backoff.
	ClassTransient Class = "transient"
	// ClassBlocked failures (anti-bot walls, vendor render errors,
	// undersized bodies) trigger strategy fallback, never a same-strategy
	// retry.
	ClassBlocked Class = "blocked"
	// ClassFatal failures (malformed request, hard 4xx) abort the source.
	ClassFatal Class = "fatal"
)

type Error struct {
	Class    Class
	Strategy string
	Status   int
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Strategy, e.Reason)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf extracts the failure class. Plain transport errors count as
// transient; context cancellation and deadlines are fatal for the attempt
// because retrying a dead context is pointless.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	if errors.Is(err, ErrNotConfigured) {
		return ClassFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}
	return ClassTransient
}

// timeoutError rewrites a strategy's own deadline expiry as a blocked
// failure so the provider moves on to the next strategy: a source that
// never answers within its per-fetch timeout behaves like a tarpit, not a
// dead job. An expired parent context passes through unchanged and aborts
// the source.
func timeoutError(parent context.Context, strategy string, timeout time.Duration, err error) error {
	if err == nil || parent.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{
		Class:    ClassBlocked,
		Strategy: strategy,
		Reason:   fmt.Sprintf("no response within %s", timeout),
		Err:      err,
	}
}

func classifyStatus(status int) Class {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return ClassTransient
	case http.StatusForbidden, http.StatusUnauthorized:
		return ClassBlocked
	default:
		return ClassFatal
	}
}

// minMarkupBytes is the smallest body accepted as a real results page.
// Challenge interstitials and vendor error stubs come in well under this.
const minMarkupBytes = 1024

var blockMarkers = []string{
	"Incapsula incident ID",
	"Request unsuccessful. Incapsula",
	"cf-challenge",
	"Pardon Our Interruption",
	"Access Denied",
	"This request was blocked",
	"are you a robot",
	"captcha-delivery",
}

// blockedMarker returns the anti-bot marker found in the markup, or "".
func blockedMarker(markup []byte) string {
	body := string(markup)
	for _, m := range blockMarkers {
		if strings.Contains(body, m) {
			return m
		}
	}
	return ""
}
