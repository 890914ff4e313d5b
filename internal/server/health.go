package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/docvec-go/internal/logging"
	"github.com/54b3r/docvec-go/internal/version"
)

// probeTimeout bounds each dependency probe run by GET /ready.
const probeTimeout = 5 * time.Second

// Pinger is a named dependency probe. Ping returns nil when the dependency
// is reachable. Implementations must be safe for concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	Name() string
}

// PingFunc is the probe signature shared by index engines and the RAG client.
type PingFunc func(ctx context.Context) error

// funcPinger adapts a named PingFunc to Pinger.
type funcPinger struct {
	name string
	ping PingFunc
}

// NewPinger returns a Pinger that reports ping's result under name, e.g.
// NewPinger("qdrant", engine.Ping).
func NewPinger(name string, ping PingFunc) Pinger {
	return &funcPinger{name: name, ping: ping}
}

func (p *funcPinger) Name() string { return p.name }

func (p *funcPinger) Ping(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("%s unreachable: %w", p.name, err)
	}
	return nil
}

// readyCheck is one probe result in a readiness response.
type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// readyResponse is the JSON body of GET /ready.
type readyResponse struct {
	Ready   bool         `json:"ready"`
	Version string       `json:"version"`
	Checks  []readyCheck `json:"checks"`
}

// probeAll runs every pinger concurrently, each under its own timeout, and
// returns the results in registration order.
func probeAll(ctx context.Context, pingers []Pinger) []readyCheck {
	checks := make([]readyCheck, len(pingers))
	var wg sync.WaitGroup
	for i, p := range pingers {
		wg.Go(func() {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(probeCtx)
			checks[i] = readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
			}
		})
	}
	wg.Wait()
	return checks
}

// handleReady handles GET /ready. It answers 200 when every dependency probe
// passes and 503 otherwise. With no pingers it reports ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := probeAll(r.Context(), s.pingers)

	resp := readyResponse{Ready: true, Version: version.Version, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
			logging.FromContext(r.Context()).Warn("server: readiness probe failed",
				slog.String("dependency", c.Name),
				slog.String("error", c.Error),
			)
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(r.Context(), w, status, resp)
}
