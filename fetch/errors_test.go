package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestClassOf(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{&Error{Class: ClassBlocked, Strategy: StrategyDirect, Status: 403, Reason: "blocked"}, ClassBlocked},
		{&Error{Class: ClassFatal, Reason: "bad request"}, ClassFatal},
		{ErrNotConfigured, ClassFatal},
		{context.Canceled, ClassFatal},
		{context.DeadlineExceeded, ClassFatal},
		{errors.New("connection reset by peer"), ClassTransient},
	}
	for _, c := range cases {
		if got := ClassOf(c.err); got != c.want {
			t.Fatalf("ClassOf(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestClassOf_Wrapped(t *testing.T) {
	inner := &Error{Class: ClassBlocked, Strategy: StrategyRender, Reason: "vendor error"}
	wrapped := &Error{Class: ClassTransient, Strategy: StrategyDirect, Reason: "outer", Err: inner}

	// The outermost classification wins.
	if got := ClassOf(wrapped); got != ClassTransient {
		t.Fatalf("expected outer class, got %s", got)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Class
	}{
		{http.StatusTooManyRequests, ClassTransient},
		{http.StatusInternalServerError, ClassTransient},
		{http.StatusBadGateway, ClassTransient},
		{http.StatusServiceUnavailable, ClassTransient},
		{http.StatusForbidden, ClassBlocked},
		{http.StatusUnauthorized, ClassBlocked},
		{http.StatusNotFound, ClassFatal},
		{http.StatusBadRequest, ClassFatal},
	}
	for _, c := range cases {
		if got := classifyStatus(c.status); got != c.want {
			t.Fatalf("classifyStatus(%d) = %s, want %s", c.status, got, c.want)
		}
	}
}

func TestBlockedMarker(t *testing.T) {
	markup := []byte("<html><body>Request unsuccessful. Incapsula incident ID: 42</body></html>")
	if blockedMarker(markup) == "" {
		t.Fatal("expected a marker hit")
	}
	clean := []byte("<html><body><article data-guid='x'>Peugeot 208</article></body></html>")
	if m := blockedMarker(clean); m != "" {
		t.Fatalf("unexpected marker %q", m)
	}
}
