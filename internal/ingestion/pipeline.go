// Package ingestion implements the document ingestion pipeline.
// It reads text from URLs or local files, splits it into chunks sized for
// the embedding backend, and hands every chunk to an eino indexer as its own
// document. This pipeline is invoked by the `docvec ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docvec-go/internal/metadata"
)

// Metadata keys written on every ingested chunk.
const (
	MetaSource      = "source"
	MetaChunkIndex  = "chunkIndex"
	MetaTotalChunks = "totalChunks"
)

// maxBodyBytes caps how much of a single source is read into memory.
const maxBodyBytes = 32 << 20

// Source describes a document source to be ingested. Exactly one of URL and
// Path is set.
type Source struct {
	// URL is the HTTP(S) URL of the page to fetch.
	URL string

	// Path is a local file path.
	Path string

	// Title is the title given to every chunk. Defaults to the file name or
	// the last URL path segment.
	Title string

	// Metadata is copied onto every chunk before the pipeline's own keys.
	Metadata metadata.Map
}

// Location returns the URL or path the source is read from.
func (s Source) Location() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkTokens is the target chunk size in estimated tokens.
	// Defaults to budget.DefaultChunkTokens if zero.
	ChunkTokens int

	// HTTPTimeout is the timeout for each fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Pipeline orchestrates the read → chunk → index flow for a set of sources.
// Embedding happens behind the indexer.
type Pipeline struct {
	indexer    indexer.Indexer
	chunker    *Chunker
	cfg        *Config
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline writing to idx. Chunk titles travel in
// MetaData["title"].
func NewPipeline(idx indexer.Indexer, cfg *Config) (*Pipeline, error) {
	if idx == nil {
		return nil, fmt.Errorf("ingestion: indexer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "docvec-go/1.0 (document ingestion)"
	}

	return &Pipeline{
		indexer: idx,
		chunker: NewChunker(cfg.ChunkTokens),
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest reads, chunks, and indexes all provided sources and returns the
// ids of the created documents. Sources are processed sequentially, one
// indexer call per source, and the first error stops the run; ids created
// before the error are returned with it. Progress is reported via the
// optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) ([]string, error) {
	if progress == nil {
		progress = func(string) {}
	}

	var ids []string
	for _, src := range sources {
		loc := src.Location()
		if loc == "" || (src.URL != "" && src.Path != "") {
			return ids, fmt.Errorf("ingestion: source must set exactly one of URL and Path")
		}
		progress(fmt.Sprintf("reading %s", loc))

		content, err := p.read(ctx, src)
		if err != nil {
			return ids, fmt.Errorf("ingestion: read failed for %s: %w", loc, err)
		}

		chunks := p.chunker.Split(content)
		progress(fmt.Sprintf("chunked %s into %d chunks", loc, len(chunks)))
		if len(chunks) == 0 {
			continue
		}

		stored, err := p.indexer.Store(ctx, chunkDocuments(src, chunks))
		ids = append(ids, stored...)
		if err != nil {
			return ids, fmt.Errorf("ingestion: indexing %s: %w", loc, err)
		}

		progress(fmt.Sprintf("ingested %d chunks from %s", len(stored), loc))
	}

	return ids, nil
}

// chunkDocuments builds one eino document per chunk. Caller metadata wins
// over inferred keys; the chunk bookkeeping keys win over both.
func chunkDocuments(src Source, chunks []string) []*schema.Document {
	loc := src.Location()
	title := src.Title
	if title == "" {
		title = defaultTitle(src)
	}
	base := InferMetadata(loc).Map()
	for k, v := range src.Metadata {
		base[k] = v
	}
	base[MetaSource] = metadata.String(loc)
	base[MetaTotalChunks] = metadata.Number(float64(len(chunks)))

	docs := make([]*schema.Document, len(chunks))
	for i, chunk := range chunks {
		md := metadata.Flatten(title, base)
		md[MetaChunkIndex] = metadata.Number(float64(i))
		docs[i] = &schema.Document{Content: chunk, MetaData: md.Any()}
	}
	return docs
}

func (p *Pipeline) read(ctx context.Context, src Source) (string, error) {
	if src.URL != "" {
		return p.fetch(ctx, src.URL)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(src.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	body, err := io.ReadAll(io.LimitReader(f, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(body), nil
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}

func defaultTitle(src Source) string {
	if src.Path != "" {
		return filepath.Base(src.Path)
	}
	u, err := url.Parse(src.URL)
	if err != nil {
		return src.URL
	}
	if segs := trimSegments(u.Path); len(segs) > 0 {
		return segs[len(segs)-1]
	}
	return u.Host
}
