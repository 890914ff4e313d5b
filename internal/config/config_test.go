package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
index:
  backend: qdrant
  collection: team-docs
embedding:
  provider: azure
  dimensions: 1536
  azure:
    endpoint: https://my-resource.openai.azure.com
    api_version: "2024-02-01"
qdrant:
  host: qdrant.internal
  port: 6334
  tls: true
server:
  rate_limit: 2.5
ingestion:
  chunk_size_tokens: 500
rag:
  service_url: http://rag:8081
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"DOCVEC_INDEX":             "qdrant",
		"DOCVEC_COLLECTION":        "team-docs",
		"EMBEDDING_PROVIDER":       "azure",
		"EMBEDDING_DIMENSIONS":     "1536",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_API_VERSION": "2024-02-01",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_TLS":               "true",
		"DOCVEC_RATE_LIMIT":        "2.5",
		"CHUNK_SIZE_TOKENS":        "500",
		"RAG_SERVICE_URL":          "http://rag:8081",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	keys := make([]string, 0, len(checks))
	for k := range checks {
		keys = append(keys, k)
	}
	clearEnv(t, keys...)

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "docvec.toml")

	content := []byte(`
[index]
backend = "sqlite"
persist_dir = "/var/lib/docvec"

[embedding]
provider = "ollama"
model = "nomic-embed-text"
batch_size = 32
timeout_seconds = 90

[embedding.ollama]
host = "http://gpu-box:11434"

[tracing]
sample_rate = 0.1
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t, "DOCVEC_INDEX", "DOCVEC_PERSIST_DIR", "EMBEDDING_PROVIDER",
		"EMBEDDING_MODEL", "EMBEDDING_BATCH_SIZE", "EMBEDDING_TIMEOUT_SECONDS",
		"OLLAMA_HOST", "LANGFUSE_SAMPLE_RATE")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	checks := map[string]string{
		"DOCVEC_INDEX":              "sqlite",
		"DOCVEC_PERSIST_DIR":        "/var/lib/docvec",
		"EMBEDDING_PROVIDER":        "ollama",
		"EMBEDDING_MODEL":           "nomic-embed-text",
		"EMBEDDING_BATCH_SIZE":      "32",
		"EMBEDDING_TIMEOUT_SECONDS": "90",
		"OLLAMA_HOST":               "http://gpu-box:11434",
		"LANGFUSE_SAMPLE_RATE":      "0.1",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
index:
  backend: memory
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading; it must not be overwritten.
	t.Setenv("DOCVEC_INDEX", "qdrant")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("DOCVEC_INDEX"); got != "qdrant" {
		t.Errorf("DOCVEC_INDEX: expected env override %q, got %q", "qdrant", got)
	}
}

func TestLoad_EnvPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  format: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCVEC_CONFIG", cfgPath)
	clearEnv(t, "LOG_FORMAT")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("LOG_FORMAT"); got != "json" {
		t.Errorf("LOG_FORMAT: got %q, want json", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(cfgPath, []byte("[index\nbackend ="), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestFloatStr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{2.5, "2.5"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := floatStr(tt.in); got != tt.want {
			t.Errorf("floatStr(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
