package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"
	"unicode/utf8"
)

const (
	// HashDimensions is the length of every vector produced by [HashVector].
	HashDimensions = 384

	// ngramSize is the number of code points hashed per window.
	ngramSize = 3

	// parallelThreshold is the batch size above which Embed fans out.
	parallelThreshold = 64
)

// HashVector embeds text by hashing every overlapping 3-code-point window
// with SHA-256 and folding the digest, read as little-endian float32 values,
// into a 384-slot accumulator. The result is L2-normalised.
//
// Inputs shorter than three code points produce the all-zero vector. NaN
// lanes of a digest are skipped. Equal inputs always give bit-identical
// outputs on every platform because the byte order is fixed.
func HashVector(text string) []float32 {
	var acc [HashDimensions]float64

	runes := []rune(text)
	buf := make([]byte, 0, ngramSize*4)
	for i := 0; i+ngramSize <= len(runes); i++ {
		buf = buf[:0]
		for _, r := range runes[i : i+ngramSize] {
			buf = utf8.AppendRune(buf, r)
		}
		digest := sha256.Sum256(buf)
		fold(&acc, digest[:])
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1.0
	}

	out := make([]float32, HashDimensions)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// fold adds each 4-byte little-endian float lane of digest to acc.
func fold(acc *[HashDimensions]float64, digest []byte) {
	limit := min(len(digest), HashDimensions*4)
	for j := 0; j+4 <= limit; j += 4 {
		f := math.Float32frombits(binary.LittleEndian.Uint32(digest[j:]))
		if math.IsNaN(float64(f)) {
			continue
		}
		acc[(j/4)%HashDimensions] += float64(f)
	}
}

// HashEmbedder implements [Embedder] with [HashVector]. It has no state and
// is safe for concurrent use.
type HashEmbedder struct {
	workers int
}

// NewHashEmbedder returns a HashEmbedder that spreads large batches across
// GOMAXPROCS goroutines.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{workers: runtime.GOMAXPROCS(0)}
}

// Dimensions returns 384.
func (h *HashEmbedder) Dimensions() int { return HashDimensions }

// Name returns "hash".
func (h *HashEmbedder) Name() string { return "hash" }

// Embed converts a batch of texts into hash vectors. ctx is checked between
// items; a cancelled context returns ctx.Err().
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	workers := h.workers
	if workers < 1 {
		workers = 1
	}
	if len(texts) < parallelThreshold || workers == 1 {
		for i, t := range texts {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("hash embedder: %w", err)
			}
			out[i] = HashVector(t)
		}
		return out, nil
	}

	var wg sync.WaitGroup
	next := make(chan int)
	for range workers {
		wg.Go(func() {
			for i := range next {
				out[i] = HashVector(texts[i])
			}
		})
	}

	var err error
feed:
	for i := range texts {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	if err != nil {
		return nil, fmt.Errorf("hash embedder: %w", err)
	}
	return out, nil
}
