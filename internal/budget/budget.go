// Package budget provides the token heuristics shared by chunking and
// retrieval. Embedding backends use different tokenizers, so this package
// uses a conservative character-based estimate: 1 token ≈ 4 characters.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultChunkTokens is the default target chunk size. At 4 chars/token
	// this is 4000 characters, well inside the 8191-token input limit of
	// text-embedding-3-small.
	DefaultChunkTokens = 1000
)

// Estimate returns a rough token count for s using the character heuristic.
// Characters are counted as code points.
func Estimate(s string) int {
	chars := utf8.RuneCountInString(s)
	n := chars / charsPerToken
	if n == 0 && chars > 0 {
		return 1
	}
	return n
}

// CharsForTokens converts a token budget into a character budget.
// Non-positive budgets fall back to DefaultChunkTokens.
func CharsForTokens(tokens int) int {
	if tokens <= 0 {
		tokens = DefaultChunkTokens
	}
	return tokens * charsPerToken
}

// EstimateDocuments returns the estimated total token count of the content
// of docs.
func EstimateDocuments(docs []*schema.Document) int {
	total := 0
	for _, d := range docs {
		total += Estimate(d.Content)
	}
	return total
}

// TrimDocuments keeps the longest prefix of docs whose estimated content
// fits within maxTokens. docs are assumed to be ranked best-first, so the
// lowest-ranked documents are dropped. A non-positive maxTokens disables
// trimming.
func TrimDocuments(docs []*schema.Document, maxTokens int) []*schema.Document {
	if maxTokens <= 0 {
		return docs
	}
	total := 0
	for i, d := range docs {
		total += Estimate(d.Content)
		if total > maxTokens {
			return docs[:i]
		}
	}
	return docs
}
