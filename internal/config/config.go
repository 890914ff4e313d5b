// Package config provides file-based configuration for docvec.
// Configuration is loaded with a layered precedence: defaults → config file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DOCVEC_CONFIG environment variable
//  3. ~/.docvec/config.yaml
//  4. ./docvec.yaml
//  5. ./docvec.toml
//
// Files ending in .toml are parsed as TOML, everything else as YAML.
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
// Field names mirror the env var naming (lowercase, underscored).
type Config struct {
	// Index selects and locates the vector index engine.
	Index IndexConfig `yaml:"index" toml:"index"`

	// Embedding configures the embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`

	// Qdrant configures the Qdrant connection used when index.backend is qdrant.
	Qdrant QdrantConfig `yaml:"qdrant" toml:"qdrant"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Ingestion configures chunking.
	Ingestion IngestionConfig `yaml:"ingestion" toml:"ingestion"`

	// RAG configures the upstream chunking service documents are imported from.
	RAG RAGConfig `yaml:"rag" toml:"rag"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
}

// IndexConfig holds index engine settings.
type IndexConfig struct {
	// Backend is sqlite, memory or qdrant.
	Backend string `yaml:"backend" toml:"backend"`
	// PersistDir is the directory holding the SQLite database.
	PersistDir string `yaml:"persist_dir" toml:"persist_dir"`
	// Collection is the collection name (Qdrant).
	Collection string `yaml:"collection" toml:"collection"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	// Provider selects the backend: hash, ollama, openai, azure.
	Provider string `yaml:"provider" toml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" toml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions" toml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	// BatchSize caps texts per remote embedding request.
	BatchSize int `yaml:"batch_size" toml:"batch_size"`
	// TimeoutSeconds bounds each remote embedding request.
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds"`
	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama" toml:"ollama"`
	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai" toml:"openai"`
	// Azure holds Azure OpenAI-specific settings.
	Azure AzureConfig `yaml:"azure" toml:"azure"`
	// Gemini holds Gemini API settings.
	Gemini GeminiConfig `yaml:"gemini" toml:"gemini"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	// APIKey is the Gemini API key. Prefer env var GEMINI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
}

// OllamaConfig holds Ollama settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host" toml:"host"`
}

// OpenAIConfig holds OpenAI settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// BaseURL points at an OpenAI-compatible server instead of api.openai.com.
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// AzureConfig holds Azure OpenAI settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version" toml:"api_version"`
}

// QdrantConfig holds Qdrant settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host" toml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port" toml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls" toml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host" toml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port" toml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var DOCVEC_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// RateLimit is the sustained write requests per second allowed per client.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	// RateBurst is the write burst size allowed per client.
	RateBurst int `yaml:"rate_burst" toml:"rate_burst"`
}

// IngestionConfig holds chunking settings.
type IngestionConfig struct {
	// ChunkSizeTokens is the target chunk size in estimated tokens.
	ChunkSizeTokens int `yaml:"chunk_size_tokens" toml:"chunk_size_tokens"`
}

// RAGConfig holds settings for the upstream chunking service.
type RAGConfig struct {
	// ServiceURL is the base URL of the service. Import is disabled when empty.
	ServiceURL string `yaml:"service_url" toml:"service_url"`
	// TimeoutSeconds bounds each upstream request.
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format" toml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key" toml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host" toml:"host"`
	// SampleRate is the fraction of traces sent (0 < rate <= 1).
	SampleRate float64 `yaml:"sample_rate" toml:"sample_rate"`
}

// envMapping maps config fields to their corresponding env var names.
// Only non-empty file values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"DOCVEC_INDEX", func(c *Config) string { return c.Index.Backend }},
	{"DOCVEC_PERSIST_DIR", func(c *Config) string { return c.Index.PersistDir }},
	{"DOCVEC_COLLECTION", func(c *Config) string { return c.Index.Collection }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"EMBEDDING_TIMEOUT_SECONDS", func(c *Config) string { return intStr(c.Embedding.TimeoutSeconds) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Embedding.Ollama.Host }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Embedding.OpenAI.APIKey }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Embedding.OpenAI.BaseURL }},
	{"GEMINI_API_KEY", func(c *Config) string { return c.Embedding.Gemini.APIKey }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Embedding.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Embedding.Azure.Endpoint }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Embedding.Azure.APIVersion }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"DOCVEC_HOST", func(c *Config) string { return c.Server.Host }},
	{"DOCVEC_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"DOCVEC_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"DOCVEC_RATE_LIMIT", func(c *Config) string { return floatStr(c.Server.RateLimit) }},
	{"DOCVEC_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"CHUNK_SIZE_TOKENS", func(c *Config) string { return intStr(c.Ingestion.ChunkSizeTokens) }},
	{"RAG_SERVICE_URL", func(c *Config) string { return c.RAG.ServiceURL }},
	{"RAG_SERVICE_TIMEOUT_SECONDS", func(c *Config) string { return intStr(c.RAG.TimeoutSeconds) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
	{"LANGFUSE_SAMPLE_RATE", func(c *Config) string { return floatStr(c.Tracing.SampleRate) }},
}

// Load reads a config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no config file found, using env vars only")
		return "", nil
	}

	cfg, err := parseFile(path)
	if err != nil {
		return "", err
	}

	applied := 0
	for _, m := range envMapping {
		val := m.value(cfg)
		if val == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set
		}
		if err := os.Setenv(m.envKey, val); err != nil {
			return "", fmt.Errorf("config: setting %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded config file",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// parseFile decodes path as TOML or YAML depending on its extension.
func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DOCVEC_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".docvec", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	for _, p := range []string{"docvec.yaml", "docvec.toml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// floatStr converts a float64 to its shortest string, returning "" for zero.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
