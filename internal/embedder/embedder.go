// Package embedder converts text into dense vectors for the document index.
//
// The default backend is [HashEmbedder], a deterministic character-trigram
// hash that needs no model and no network. [OllamaEmbedder] and
// [OpenAIEmbedder] talk to real embedding models over plain HTTP and satisfy
// the same [Embedder] contract, so the index never knows which one it holds.
package embedder

import "context"

// Embedder converts text into dense vector representations.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every vector returned by Embed.
	Dimensions() int

	// Name identifies the backend in logs and metrics.
	Name() string
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
