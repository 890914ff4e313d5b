package ingestion

import (
	"net/url"
	"path"
	"strings"

	"github.com/54b3r/docvec-go/internal/metadata"
)

// Metadata keys inferred from a source location.
const (
	MetaSourceType = "sourceType"
	MetaHost       = "host"
	MetaFormat     = "format"
)

// InferredMetadata holds what can be read off a source location without
// fetching it. Caller-supplied metadata takes precedence over these values.
type InferredMetadata struct {
	// SourceType is "url" for http(s) sources and "file" otherwise.
	SourceType string
	// Host is the lowercase URL host. Empty for files.
	Host string
	// Format classifies the content (markdown, html, text, json, ...).
	Format string
}

// extensionFormats maps file extensions to format labels.
var extensionFormats = map[string]string{
	".md":       "markdown",
	".markdown": "markdown",
	".mdx":      "markdown",
	".html":     "html",
	".htm":      "html",
	".txt":      "text",
	".text":     "text",
	".rst":      "rst",
	".adoc":     "asciidoc",
	".json":     "json",
	".yaml":     "yaml",
	".yml":      "yaml",
	".csv":      "csv",
	".go":       "code",
	".py":       "code",
	".java":     "code",
	".ts":       "code",
	".js":       "code",
}

// InferMetadata inspects a source URL or path and returns best-effort
// metadata. Unknown extensions yield "text" for files and "html" for URLs,
// since a bare URL usually serves a web page.
//
// Supported URL patterns:
//
//	{scheme}://{host}/.../{name}.{ext}
//	raw.githubusercontent.com/...           (raw file, format from extension)
//	github.com/{org}/{repo}/blob/...        (rendered as html)
func InferMetadata(location string) InferredMetadata {
	m := InferredMetadata{SourceType: "file", Format: "text"}

	lower := strings.ToLower(location)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if f, ok := extensionFormats[path.Ext(strings.ReplaceAll(lower, "\\", "/"))]; ok {
			m.Format = f
		}
		return m
	}

	m.SourceType = "url"
	m.Format = "html"

	parsed, err := url.Parse(location)
	if err != nil {
		return m
	}
	m.Host = strings.ToLower(parsed.Hostname())

	segments := trimSegments(strings.ToLower(parsed.Path))
	if len(segments) == 0 {
		return m
	}

	switch {
	case m.Host == "github.com" && len(segments) > 2 && segments[2] == "blob":
		// Rendered repository view, keep html.
	default:
		if f, ok := extensionFormats[path.Ext(segments[len(segments)-1])]; ok {
			m.Format = f
		}
	}
	return m
}

// Map returns the non-empty fields as chunk metadata.
func (m InferredMetadata) Map() metadata.Map {
	out := metadata.Map{MetaSourceType: metadata.String(m.SourceType)}
	if m.Host != "" {
		out[MetaHost] = metadata.String(m.Host)
	}
	if m.Format != "" {
		out[MetaFormat] = metadata.String(m.Format)
	}
	return out
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
