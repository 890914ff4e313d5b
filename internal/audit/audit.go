// Package audit records one structured log entry per CLI invocation: the
// command, the config file it resolved and the docvec environment, with
// secrets reduced to set/unset and credentials stripped from URLs.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// redaction says how an env value is rendered in the audit entry.
type redaction int

const (
	plain redaction = iota
	// secret values are logged as "set" or "unset".
	secret
	// urlValue values have any userinfo password replaced.
	urlValue
)

// envVar is one environment variable in the audit entry.
type envVar struct {
	key    string
	redact redaction
}

// auditedEnv is the ordered list of variables every entry carries.
var auditedEnv = []envVar{
	{"DOCVEC_INDEX", plain},
	{"DOCVEC_PERSIST_DIR", plain},
	{"DOCVEC_COLLECTION", plain},
	{"EMBEDDING_PROVIDER", plain},
	{"EMBEDDING_MODEL", plain},
	{"EMBEDDING_DIMENSIONS", plain},
	{"EMBEDDING_API_KEY", secret},
	{"EMBEDDING_ENDPOINT", urlValue},
	{"OLLAMA_HOST", urlValue},
	{"OPENAI_API_KEY", secret},
	{"OPENAI_BASE_URL", urlValue},
	{"AZURE_OPENAI_API_KEY", secret},
	{"AZURE_OPENAI_ENDPOINT", urlValue},
	{"GEMINI_API_KEY", secret},
	{"QDRANT_HOST", plain},
	{"QDRANT_PORT", plain},
	{"QDRANT_API_KEY", secret},
	{"DOCVEC_API_KEY", secret},
	{"RAG_SERVICE_URL", urlValue},
	{"CHUNK_SIZE_TOKENS", plain},
	{"LOG_LEVEL", plain},
	{"LOG_FORMAT", plain},
	{"LANGFUSE_HOST", urlValue},
	{"LANGFUSE_PUBLIC_KEY", secret},
	{"LANGFUSE_SECRET_KEY", secret},
}

// LogCommandStart emits the audit entry for command at info level.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditedEnv)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", displayPath(configPath)),
	)
	for _, v := range auditedEnv {
		attrs = append(attrs, slog.String(v.key, render(v.redact, os.Getenv(v.key))))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey renders value the way the audit entry would for key. Keys
// that are not audited are treated as plain.
func SanitiseKey(key, value string) string {
	for _, v := range auditedEnv {
		if v.key == key {
			return render(v.redact, value)
		}
	}
	return render(plain, value)
}

func render(r redaction, value string) string {
	if value == "" {
		return "unset"
	}
	switch r {
	case secret:
		return "set"
	case urlValue:
		return redactURL(value)
	default:
		return value
	}
}

// redactURL masks the password in a URL's userinfo. Values that do not
// parse are returned unchanged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

// displayPath returns "none" for an empty path and abbreviates the home
// directory to "~".
func displayPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
