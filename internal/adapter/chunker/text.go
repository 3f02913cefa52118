// Package chunker splits document text into overlapping pieces sized for
// embedding.
package chunker

import (
	"strings"
	"unicode/utf8"
)

type TextChunker struct {
	maxChars int
	overlap  int
}

func NewTextChunker(maxChars, overlap int) *TextChunker {
	if maxChars <= 0 {
		maxChars = 2000
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = 0
	}
	return &TextChunker{maxChars: maxChars, overlap: overlap}
}

// Chunk splits content into pieces of at most maxChars characters,
// preferring paragraph boundaries, then line boundaries, over hard cuts.
// Consecutive chunks share an overlap-sized tail.
func (c *TextChunker) Chunk(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= c.maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := start + c.maxChars
		if end >= len(content) {
			end = len(content)
		} else {
			end = c.splitPoint(content, start, end)
		}

		chunk := strings.TrimSpace(content[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(content) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		for next < len(content) && !utf8.RuneStart(content[next]) {
			next++
		}
		start = next
	}

	return chunks
}

// splitPoint looks backwards from the hard limit for a paragraph break,
// then a newline, then a space. Falls back to a mid-word cut.
func (c *TextChunker) splitPoint(content string, start, limit int) int {
	window := content[start:limit]
	// never shrink the chunk below half its size hunting for a boundary
	floor := len(window) / 2

	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > floor {
			return start + i + len(sep)
		}
	}

	// A hard cut must not land inside a multibyte rune.
	for limit > start && !utf8.RuneStart(content[limit]) {
		limit--
	}
	return limit
}
