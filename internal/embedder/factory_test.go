package embedder

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEmbeddingEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT", "OLLAMA_HOST",
		"EMBEDDING_BATCH_SIZE", "EMBEDDING_TIMEOUT_SECONDS",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
		"GEMINI_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestNewFromEnv_DefaultsToHash(t *testing.T) {
	clearEmbeddingEnv(t)

	e, err := NewFromEnv()
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)
	assert.Equal(t, HashDimensions, e.Dimensions())
}

func TestNewFromEnv_Backends(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		want    string
		dims    int
		wantErr bool
	}{
		{name: "ollama", env: map[string]string{"EMBEDDING_PROVIDER": "ollama"}, want: "ollama/nomic-embed-text", dims: 768},
		{name: "ollama dims override", env: map[string]string{"EMBEDDING_PROVIDER": "ollama", "EMBEDDING_DIMENSIONS": "1024"}, want: "ollama/nomic-embed-text", dims: 1024},
		{name: "openai", env: map[string]string{"EMBEDDING_PROVIDER": "openai", "OPENAI_API_KEY": "sk-test"}, want: "openai/text-embedding-3-small", dims: 1536},
		{name: "openai missing key", env: map[string]string{"EMBEDDING_PROVIDER": "openai"}, wantErr: true},
		{name: "azure", env: map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "k", "AZURE_OPENAI_ENDPOINT": "https://x"}, want: "azure/text-embedding-3-small", dims: 1536},
		{name: "generic key wins", env: map[string]string{"EMBEDDING_PROVIDER": "openai", "EMBEDDING_API_KEY": "k", "EMBEDDING_MODEL": "text-embedding-3-large", "EMBEDDING_DIMENSIONS": "3072"}, want: "openai/text-embedding-3-large", dims: 3072},
		{name: "azure missing key", env: map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_ENDPOINT": "https://x"}, wantErr: true},
		{name: "azure missing endpoint", env: map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "k"}, wantErr: true},
		{name: "gemini", env: map[string]string{"EMBEDDING_PROVIDER": "gemini", "GEMINI_API_KEY": "gm"}, want: "gemini/gemini-embedding-001", dims: 768},
		{name: "gemini missing key", env: map[string]string{"EMBEDDING_PROVIDER": "gemini"}, wantErr: true},
		{name: "unknown", env: map[string]string{"EMBEDDING_PROVIDER": "bogus"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEmbeddingEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			e, err := NewFromEnv()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, e.Name())
			assert.Equal(t, tc.dims, e.Dimensions())
		})
	}
}

func TestDefaultDimensions_HashIgnoresOverride(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_DIMENSIONS", "99")

	assert.Equal(t, HashDimensions, DefaultDimensions(BackendHash))
	assert.Equal(t, 99, DefaultDimensions(BackendOpenAI))
}

func TestValidate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	clearEmbeddingEnv(t)
	assert.NoError(t, Validate(log))

	t.Setenv("EMBEDDING_PROVIDER", "openai")
	assert.Error(t, Validate(log))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.NoError(t, Validate(log))

	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("EMBEDDING_API_KEY", "k")
	assert.Error(t, Validate(log), "azure without an endpoint")

	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://x.openai.azure.com")
	assert.NoError(t, Validate(log))

	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	assert.NoError(t, Validate(log), "ollama needs no credentials")

	t.Setenv("EMBEDDING_PROVIDER", "gemini")
	t.Setenv("EMBEDDING_API_KEY", "")
	assert.Error(t, Validate(log), "gemini without a key")
	t.Setenv("GEMINI_API_KEY", "gm")
	assert.NoError(t, Validate(log))

	t.Setenv("EMBEDDING_PROVIDER", "bogus")
	assert.Error(t, Validate(log))
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	assert.True(t, looksLikeChatModel("gpt-4o"))
	assert.True(t, looksLikeChatModel("Llama3:8b"))
	assert.False(t, looksLikeChatModel("nomic-embed-text"))
	assert.False(t, looksLikeChatModel("text-embedding-3-small"))
	assert.False(t, looksLikeChatModel("mistral-embed"))
}
