// Package tracing wires eino callbacks to Langfuse so that retrievals,
// indexing and embedding calls made through internal/retrieval are traced.
package tracing

import (
	"os"
	"strconv"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/docvec-go/internal/version"
)

const defaultHost = "http://localhost:3000"

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY
// and LANGFUSE_SAMPLE_RATE. ok is false when either key is missing.
func ConfigFromEnv() (cfg *langfuse.Config, ok bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	cfg = &langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
		Name:      "docvec",
		Release:   version.Version,
	}
	if raw := os.Getenv("LANGFUSE_SAMPLE_RATE"); raw != "" {
		if rate, err := strconv.ParseFloat(raw, 64); err == nil && rate > 0 && rate <= 1 {
			cfg.SampleRate = rate
		}
	}
	return cfg, true
}

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set. Returns a flush function that must be called
// before process exit to ensure all traces are sent. If Langfuse is not
// configured, both return values are nil and tracing is silently disabled.
func Setup() (callbacks.Handler, func(), bool) {
	cfg, ok := ConfigFromEnv()
	if !ok {
		return nil, nil, false
	}
	handler, flusher := langfuse.NewLangfuseHandler(cfg)
	return handler, flusher, true
}
