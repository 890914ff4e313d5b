package ingestion

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/docvec-go/internal/budget"
)

var (
	paragraphBreak = regexp.MustCompile(`\n\n+`)
	sentenceEnd    = regexp.MustCompile(`[.!?]\s+`)
)

// Chunker splits long text into pieces that fit an embedding model's input
// limit. It splits on paragraphs first, then sentences, and hard-splits any
// sentence that is still too long. Lengths are counted in code points.
type Chunker struct {
	maxChars int
}

// NewChunker returns a Chunker targeting tokens per chunk (4 chars/token).
// Non-positive tokens select budget.DefaultChunkTokens.
func NewChunker(tokens int) *Chunker {
	return &Chunker{maxChars: budget.CharsForTokens(tokens)}
}

// MaxChars is the upper bound on the length of every chunk.
func (c *Chunker) MaxChars() int { return c.maxChars }

// Split returns the ordered, trimmed, non-blank chunks of text. Blank input
// yields no chunks; input within the limit yields one.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if runeLen(text) <= c.maxChars {
		return []string{strings.TrimSpace(text)}
	}

	a := &accumulator{max: c.maxChars}
	for _, para := range paragraphBreak.Split(text, -1) {
		if strings.TrimSpace(para) == "" {
			continue
		}
		plen := runeLen(para)
		switch {
		case a.len+plen+2 <= c.maxChars:
			a.add(para, "\n\n")
		case plen > c.maxChars:
			a.flush()
			c.splitSentences(a, para)
		default:
			a.flush()
			a.add(para, "")
		}
	}
	a.flush()
	return a.chunks
}

// splitSentences packs the sentences of an oversized paragraph into a. The
// last partial chunk stays in a for the next paragraph to extend.
func (c *Chunker) splitSentences(a *accumulator, para string) {
	for _, sent := range splitSentences(para) {
		if strings.TrimSpace(sent) == "" {
			continue
		}
		slen := runeLen(sent)
		switch {
		case a.len+slen+1 <= c.maxChars:
			a.add(sent, " ")
		case slen > c.maxChars:
			a.flush()
			runes := []rune(sent)
			for i := 0; i < len(runes); i += c.maxChars {
				a.emit(string(runes[i:min(i+c.maxChars, len(runes))]))
			}
		default:
			a.flush()
			a.add(sent, "")
		}
	}
}

// splitSentences splits after '.', '!' or '?' followed by whitespace,
// dropping the whitespace.
func splitSentences(s string) []string {
	var out []string
	last := 0
	for _, m := range sentenceEnd.FindAllStringIndex(s, -1) {
		out = append(out, s[last:m[0]+1])
		last = m[1]
	}
	return append(out, s[last:])
}

type accumulator struct {
	max    int
	buf    strings.Builder
	len    int
	chunks []string
}

// add appends s, preceded by sep when the buffer is not empty.
func (a *accumulator) add(s, sep string) {
	if a.len > 0 {
		a.buf.WriteString(sep)
		a.len += runeLen(sep)
	}
	a.buf.WriteString(s)
	a.len += runeLen(s)
}

func (a *accumulator) flush() {
	if a.len == 0 {
		return
	}
	a.emit(a.buf.String())
	a.buf.Reset()
	a.len = 0
}

func (a *accumulator) emit(s string) {
	if s = strings.TrimSpace(s); s != "" {
		a.chunks = append(a.chunks, s)
	}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
