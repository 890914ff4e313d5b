package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/docvec-go/internal/logging"
)

// Write-route throttling defaults. Every create, update, delete and import
// embeds content, so the limits are per client address.
const (
	defaultRateLimit = 10
	defaultRateBurst = 20

	// clientIdleTTL is how long an address keeps its bucket after its last
	// write.
	clientIdleTTL = 5 * time.Minute
)

// clientBucket is one client's token bucket.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// writeThrottle applies a per-client token bucket to mutating routes.
type writeThrottle struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   rate.Limit
	burst   int
	// rejected is called with the route name of every throttled request.
	rejected func(route string)
	now      func() time.Time
}

// newWriteThrottle builds a throttle and starts its eviction loop. The
// returned stop function ends the loop and may be called more than once.
func newWriteThrottle(rps float64, burst int, rejected func(route string)) (*writeThrottle, func()) {
	if rejected == nil {
		rejected = func(string) {}
	}
	wt := &writeThrottle{
		clients:  make(map[string]*clientBucket),
		limit:    rate.Limit(rps),
		burst:    burst,
		rejected: rejected,
		now:      time.Now,
	}

	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				wt.evictIdle()
			}
		}
	}()
	return wt, func() { once.Do(func() { close(done) }) }
}

// reserve takes a token for addr. When none is available it returns false
// and the wait until the next token.
func (wt *writeThrottle) reserve(addr string) (bool, time.Duration) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	now := wt.now()
	b, ok := wt.clients[addr]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(wt.limit, wt.burst)}
		wt.clients[addr] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// evictIdle drops buckets that have not been used within clientIdleTTL.
func (wt *writeThrottle) evictIdle() int {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	cutoff := wt.now().Add(-clientIdleTTL)
	n := 0
	for addr, b := range wt.clients {
		if b.lastSeen.Before(cutoff) {
			delete(wt.clients, addr)
			n++
		}
	}
	return n
}

// wrap throttles next under the given route name. Rejected requests get 429
// with Retry-After rounded up to whole seconds.
func (wt *writeThrottle) wrap(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := clientAddr(r)
		ok, wait := wt.reserve(addr)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		wt.rejected(route)
		logging.FromContext(r.Context()).Warn("server: write throttled",
			slog.String("client", addr),
			slog.String("route", route),
			slog.Duration("retry_after", wait),
		)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
		writeError(r.Context(), w, http.StatusTooManyRequests, "too many write requests, slow down")
	})
}

// retryAfterSeconds converts a wait into a Retry-After value of at least 1.
func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	return max(secs, 1)
}

// clientAddr returns the host part of RemoteAddr. Proxy headers are not
// trusted.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
