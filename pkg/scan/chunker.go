package scan

import (
	"fmt"
	"unicode/utf8"
)

// DefaultChunkSize is the input length above which text is scanned in
// windows.
const DefaultChunkSize = 300000

// Chunk is one contiguous window of the input.
type Chunk struct {
	Offset int
	Text   string
}

// SplitChunks cuts text into contiguous windows of at most size bytes.
// Window edges are moved back to a rune start. There is no overlap, so a
// value straddling an edge is not seen by either window.
func SplitChunks(text string, size int) []Chunk {
	if size <= 0 || len(text) <= size {
		return []Chunk{{Offset: 0, Text: text}}
	}

	chunks := make([]Chunk, 0, len(text)/size+1)
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			// a window narrower than one rune still has to make progress
			if end == start {
				end = start + size
				for end < len(text) && !utf8.RuneStart(text[end]) {
					end++
				}
			}
		}
		chunks = append(chunks, Chunk{Offset: start, Text: text[start:end]})
		start = end
	}
	return chunks
}

// MergeChunkFindings shifts per-chunk findings into whole-text offsets.
// A finding that lands outside the text is a programming error and panics.
func MergeChunkFindings(textLen int, chunk Chunk, findings []Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		f.Span = f.Span.Shift(chunk.Offset)
		if f.Span.Start >= f.Span.End || f.Span.Start < 0 || f.Span.End > textLen {
			panic(fmt.Sprintf("scan: chunk merge produced invalid span [%d,%d) for text of length %d",
				f.Span.Start, f.Span.End, textLen))
		}
		out = append(out, f)
	}
	return out
}
