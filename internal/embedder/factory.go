package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "gemini-embedding-001"

	// DefaultOllamaHost is used when neither EMBEDDING_ENDPOINT nor
	// OLLAMA_HOST is set.
	DefaultOllamaHost      = "http://localhost:11434"
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultAzureAPIVersion = "2025-04-01-preview"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultGeminiDimensions is requested from gemini-embedding-001, which
	// truncates its 3072-wide output on request.
	defaultGeminiDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Backend names accepted by EMBEDDING_PROVIDER.
const (
	BackendHash   = "hash"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendGemini = "gemini"
)

// Backend returns the configured backend name, defaulting to hash.
func Backend() string {
	return getEnvOrDefault("EMBEDDING_PROVIDER", BackendHash)
}

// DefaultDimensions returns the embedding vector size for the given backend.
// The hash backend is always 384 wide. For model backends
// EMBEDDING_DIMENSIONS takes precedence when set.
func DefaultDimensions(backend string) int {
	if backend == BackendHash || backend == "" {
		return HashDimensions
	}
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case BackendOllama:
		return defaultOllamaDimensions
	case BackendGemini:
		return defaultGeminiDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// NewFromEnv constructs an [Embedder] from environment variables.
//
// EMBEDDING_PROVIDER picks the backend (hash by default). The generic
// EMBEDDING_MODEL, EMBEDDING_API_KEY, EMBEDDING_ENDPOINT and
// EMBEDDING_DIMENSIONS variables win over the backend-specific ones
// (OLLAMA_HOST, OPENAI_API_KEY, AZURE_OPENAI_*, GEMINI_API_KEY).
// EMBEDDING_BATCH_SIZE and EMBEDDING_TIMEOUT_SECONDS tune remote calls.
func NewFromEnv() (Embedder, error) {
	backend := Backend()
	batch := getEnvInt("EMBEDDING_BATCH_SIZE", 0)
	timeout := requestTimeout()

	switch backend {
	case BackendHash:
		return NewHashEmbedder(), nil

	case BackendOllama:
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       firstEnv("EMBEDDING_ENDPOINT", "OLLAMA_HOST", DefaultOllamaHost),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
			Dimensions: DefaultDimensions(backend),
			BatchSize:  batch,
			Timeout:    timeout,
		}), nil

	case BackendGemini:
		e, err := NewGeminiEmbedder(context.Background(), &GeminiConfig{
			APIKey:     firstEnv("EMBEDDING_API_KEY", "GEMINI_API_KEY", ""),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultGeminiModel),
			Dimensions: DefaultDimensions(backend),
			BaseURL:    getEnvOrDefault("EMBEDDING_ENDPOINT", ""),
			BatchSize:  batch,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, err
		}
		return e, nil

	case BackendOpenAI, BackendAzure:
		cfg := &OpenAIConfig{
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: DefaultDimensions(backend),
			BatchSize:  batch,
			Timeout:    timeout,
		}
		if backend == BackendOpenAI {
			cfg.APIKey = firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY", "")
			cfg.BaseURL = firstEnv("EMBEDDING_ENDPOINT", "OPENAI_BASE_URL", defaultOpenAIBaseURL)
		} else {
			cfg.Azure = true
			cfg.APIKey = firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY", "")
			endpoint := firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT", "")
			if endpoint == "" {
				return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
			}
			cfg.BaseURL = strings.TrimRight(endpoint, "/") + "/openai"
			cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion)
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: %s requires an API key (EMBEDDING_API_KEY)", backend)
		}
		return NewOpenAIEmbedder(cfg), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: hash, ollama, openai, azure, gemini)", backend)
	}
}

// requestTimeout reads EMBEDDING_TIMEOUT_SECONDS. Zero keeps the backend
// default.
func requestTimeout() time.Duration {
	return time.Duration(getEnvInt("EMBEDDING_TIMEOUT_SECONDS", 0)) * time.Second
}

// firstEnv returns the first non-empty value among primary and secondary,
// or fallback.
func firstEnv(primary, secondary, fallback string) string {
	if v := os.Getenv(primary); v != "" {
		return v
	}
	return getEnvOrDefault(secondary, fallback)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
