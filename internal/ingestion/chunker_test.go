package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBounded(t *testing.T, chunks []string, max int) {
	t.Helper()
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), max, "chunk %d too long", i)
		assert.NotEmpty(t, strings.TrimSpace(c), "chunk %d blank", i)
		assert.Equal(t, strings.TrimSpace(c), c, "chunk %d not trimmed", i)
	}
}

func TestChunker_BlankInput(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\n\t "))
}

func TestChunker_ShortText(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	assert.Equal(t, []string{"Short text."}, c.Split("  Short text.\n"))
}

func TestChunker_ExactlyAtLimit(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)
	require.Equal(t, 40, c.MaxChars())

	text := strings.Repeat("a", 40)
	assert.Equal(t, []string{text}, c.Split(text))
}

func TestChunker_LongSingleParagraph(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	chunks := c.Split(strings.Repeat("word ", 50))
	require.Greater(t, len(chunks), 1)
	assertBounded(t, chunks, 40)
}

func TestChunker_Paragraphs(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	chunks := c.Split("First paragraph text here.\n\nSecond paragraph text here.")
	assert.Equal(t, []string{"First paragraph text here.", "Second paragraph text here."}, chunks)
}

func TestChunker_MergesSmallParagraphs(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	chunks := c.Split("one\n\ntwo\n\n\n\nthree\n\n" + strings.Repeat("z", 30))
	assert.Equal(t, []string{"one\n\ntwo\n\nthree", strings.Repeat("z", 30)}, chunks)
}

func TestChunker_SentenceSplit(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	text := "The first sentence is here. A second one follows! Is this the third? Yes."
	chunks := c.Split(text)
	assert.Equal(t, []string{
		"The first sentence is here.",
		"A second one follows! Is this the third?",
		"Yes.",
	}, chunks)
	assertBounded(t, chunks, 40)
}

func TestChunker_HardSplit(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	chunks := c.Split(strings.Repeat("x", 100))
	assert.Equal(t, []string{
		strings.Repeat("x", 40),
		strings.Repeat("x", 40),
		strings.Repeat("x", 20),
	}, chunks)
}

func TestChunker_MultibyteCountsCodePoints(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	text := strings.Repeat("é", 40)
	assert.Equal(t, []string{text}, c.Split(text))

	chunks := c.Split(strings.Repeat("日", 90))
	require.Len(t, chunks, 3)
	assertBounded(t, chunks, 40)
}

func TestChunker_NeverBlank(t *testing.T) {
	t.Parallel()
	c := NewChunker(10)

	text := "Alpha beta gamma.\n\n   \n\nDelta epsilon zeta eta theta iota kappa lambda mu.\n\n\n\nNu."
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	assertBounded(t, chunks, 40)
}

func TestChunker_DefaultSize(t *testing.T) {
	t.Parallel()
	c := NewChunker(0)
	require.Equal(t, 4000, c.MaxChars())

	chunks := c.Split(strings.Repeat("paragraph content here. ", 500))
	require.Greater(t, len(chunks), 1)
	assertBounded(t, chunks, 4000)
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"A.", "B!", "C?", "D"}, splitSentences("A. B!\tC?\n D"))
	assert.Equal(t, []string{"v1.2 is out."}, splitSentences("v1.2 is out."))
}
