package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// chatModelFragments identify completion models that are often configured
// by mistake in place of an embedding model.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama2", "llama3", "llama-2", "llama-3",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen",
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, frag := range chatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// requiredEnv lists, per backend, settings that must be present under at
// least one of the given names.
var requiredEnv = map[string][][]string{
	BackendOpenAI: {{"EMBEDDING_API_KEY", "OPENAI_API_KEY"}},
	BackendGemini: {{"EMBEDDING_API_KEY", "GEMINI_API_KEY"}},
	BackendAzure: {
		{"EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY"},
		{"EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT"},
	},
}

// Validate checks the embedding configuration before any index is opened.
// Missing credentials and unknown backends are errors. Settings that are
// ignored or look mistaken are logged as warnings.
func Validate(log *slog.Logger) error {
	backend := Backend()
	model := os.Getenv("EMBEDDING_MODEL")

	switch backend {
	case BackendHash:
		if model != "" || os.Getenv("EMBEDDING_DIMENSIONS") != "" {
			log.Warn("embedder: model settings have no effect on the hash backend",
				slog.String("hint", "set EMBEDDING_PROVIDER to a model backend to embed with a model"),
			)
		}
	case BackendOllama, BackendOpenAI, BackendAzure, BackendGemini:
		for _, names := range requiredEnv[backend] {
			if firstEnv(names[0], names[1], "") == "" {
				return fmt.Errorf("embedder: %s backend needs %s (or %s)", backend, names[1], names[0])
			}
		}
		if model != "" && looksLikeChatModel(model) {
			log.Warn("embedder: EMBEDDING_MODEL looks like a chat model",
				slog.String("model", model),
				slog.String("hint", "use an embedding model such as nomic-embed-text or text-embedding-3-small"),
			)
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: hash, ollama, openai, azure, gemini)", backend)
	}

	log.Info("embedder: configured",
		slog.String("backend", backend),
		slog.Int("dimensions", DefaultDimensions(backend)),
	)
	return nil
}
