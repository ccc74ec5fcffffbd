package docindex

import (
	"strings"
)

// separators is the split preference order: paragraph breaks first, then
// lines, then sentence terminators (Latin and Arabic), then the Arabic
// comma, then any whitespace. Splitting on a rune boundary is the last
// resort for text with no separators at all.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "؟", "،", " "}

// Chunker splits document text into overlapping chunks sized for embedding:
// small enough for the embedding context, large enough to keep neighbouring
// sentences together.
type Chunker struct {
	Size    int // target chunk size in bytes
	Overlap int // bytes carried over between consecutive chunks
}

// NewChunker creates a Chunker. Non-positive size falls back to 500,
// negative overlap to 50.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 50
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split splits text into chunks of at most Size bytes, recursively
// preferring the coarsest separator that produces pieces within budget.
// Consecutive chunks overlap by roughly Overlap bytes.
func (c *Chunker) Split(text string) []string {
	pieces := c.split(text, 0)

	// Merge small adjacent pieces back together up to the size budget.
	var chunks []string
	var current strings.Builder
	for _, p := range pieces {
		if current.Len() > 0 && current.Len()+len(p) > c.Size {
			chunks = append(chunks, current.String())
			tail := overlapTail(current.String(), c.Overlap)
			current.Reset()
			current.WriteString(tail)
		}
		current.WriteString(p)
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		chunks = append(chunks, current.String())
	}

	out := chunks[:0]
	for _, ch := range chunks {
		if strings.TrimSpace(ch) != "" {
			out = append(out, ch)
		}
	}
	return out
}

// split breaks text into pieces no longer than Size using the separator at
// depth, recursing to finer separators for oversized pieces.
func (c *Chunker) split(text string, depth int) []string {
	if len(text) <= c.Size {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if depth >= len(separators) {
		return c.hardSplit(text)
	}

	sep := separators[depth]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return c.split(text, depth+1)
	}

	var out []string
	for _, part := range parts {
		if len(part) <= c.Size {
			if part != "" {
				out = append(out, part)
			}
			continue
		}
		out = append(out, c.split(part, depth+1)...)
	}
	return out
}

// hardSplit cuts text at fixed offsets, aligned to rune boundaries so
// multi-byte script text is never cut mid-character.
func (c *Chunker) hardSplit(text string) []string {
	var out []string
	runes := []rune(text)
	// Rune count approximates the byte budget closely enough here; exact
	// byte-precise cuts are not worth mangling the logic for.
	step := c.Size
	for start := 0; start < len(runes); start += step {
		end := start + step
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// overlapTail returns roughly the last n characters of s, trimmed to start
// on a word boundary. Rune-based so multi-byte script text stays intact.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	tail := string(runes[len(runes)-n:])
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx < len(tail)-1 {
		return tail[idx+1:]
	}
	return tail
}
