package server

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// okHandler answers 200 so tests can tell a request reached the handler.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func postFrom(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/documents", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWriteThrottle_AllowsBurst(t *testing.T) {
	t.Parallel()

	wt, stop := newWriteThrottle(100, 5, nil)
	defer stop()
	h := wt.wrap("create", okHandler)

	for i := range 5 {
		if w := postFrom(h, "127.0.0.1:12345"); w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestWriteThrottle_RejectsOverBurst(t *testing.T) {
	t.Parallel()

	var rejected atomic.Int32
	var route atomic.Value
	wt, stop := newWriteThrottle(0.001, 2, func(r string) {
		rejected.Add(1)
		route.Store(r)
	})
	defer stop()
	h := wt.wrap("update", okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, postFrom(h, "10.0.0.1:9999").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if rejected.Load() != 1 || route.Load() != "update" {
		t.Errorf("rejected callback: count %d route %v", rejected.Load(), route.Load())
	}
}

func TestWriteThrottle_RetryAfter(t *testing.T) {
	t.Parallel()

	// One token every 4s: the second request must wait about 4s.
	wt, stop := newWriteThrottle(0.25, 1, nil)
	defer stop()
	h := wt.wrap("create", okHandler)

	postFrom(h, "10.0.0.2:1")
	w := postFrom(h, "10.0.0.2:1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "4" {
		t.Errorf("Retry-After: got %q, want \"4\"", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func TestWriteThrottle_RejectionDoesNotConsumeTokens(t *testing.T) {
	t.Parallel()

	wt, stop := newWriteThrottle(1, 1, nil)
	defer stop()

	base := time.Unix(1_700_000_000, 0)
	now := base
	wt.now = func() time.Time { return now }

	if ok, _ := wt.reserve("a"); !ok {
		t.Fatal("first reservation should pass")
	}
	for range 5 {
		if ok, _ := wt.reserve("a"); ok {
			t.Fatal("expected rejection while bucket is empty")
		}
	}
	now = base.Add(time.Second)
	if ok, _ := wt.reserve("a"); !ok {
		t.Error("bucket should refill after one second despite earlier rejections")
	}
}

func TestWriteThrottle_PerClient(t *testing.T) {
	t.Parallel()

	wt, stop := newWriteThrottle(0.001, 1, nil)
	defer stop()
	h := wt.wrap("create", okHandler)

	postFrom(h, "192.168.1.1:1000")
	if w := postFrom(h, "192.168.1.1:1001"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same host, new port: expected 429, got %d", w.Code)
	}
	if w := postFrom(h, "192.168.1.2:1000"); w.Code != http.StatusOK {
		t.Errorf("other host: expected 200, got %d", w.Code)
	}
}

func TestWriteThrottle_EvictIdle(t *testing.T) {
	t.Parallel()

	wt, stop := newWriteThrottle(1, 1, nil)
	defer stop()
	stop() // idempotent

	base := time.Unix(1_700_000_000, 0)
	now := base
	wt.now = func() time.Time { return now }

	wt.reserve("old")
	now = base.Add(clientIdleTTL - time.Second)
	wt.reserve("fresh")
	now = base.Add(clientIdleTTL + time.Second)

	if n := wt.evictIdle(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if _, ok := wt.clients["fresh"]; !ok {
		t.Error("fresh client should survive eviction")
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for in, want := range cases {
		if got := retryAfterSeconds(in); got != want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestClientAddr(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"127.0.0.1:8080": "127.0.0.1",
		"[::1]:9090":     "::1",
		"no-port":        "no-port",
	}
	for remote, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if got := clientAddr(req); got != want {
			t.Errorf("clientAddr(%q) = %q, want %q", remote, got, want)
		}
	}
}
