package scan

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultSkipGlobs are filename patterns whose content is never scanned.
var DefaultSkipGlobs = []string{
	"**/package-lock.json",
	"**/yarn.lock",
	"**/poetry.lock",
	"**/Pipfile.lock",
	"**/composer.lock",
	"**/Gemfile.lock",
	"**/*.min.js",
	"**/*.min.css",
	"**/*.map",
	"**/__pycache__/**",
	"**/.git/**",
}

// Pre-screen heuristics.
const (
	binarySampleRunes = 500
	binaryMinSample   = 50
	binaryRatio       = 0.3
	longLineScanBytes = 2000
	longLineMaxLength = 2000
)

// Prescreen decides whether a text is worth scanning at all.
type Prescreen struct {
	globs []string
}

// NewPrescreen creates a pre-screen with the default globs plus extra.
// Malformed patterns are rejected.
func NewPrescreen(extra ...string) (*Prescreen, error) {
	globs := make([]string, 0, len(DefaultSkipGlobs)+len(extra))
	globs = append(globs, DefaultSkipGlobs...)
	for _, g := range extra {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid skip glob %q", g)
		}
		globs = append(globs, g)
	}
	return &Prescreen{globs: globs}, nil
}

// Check returns a non-empty reason when the text should be skipped.
func (p *Prescreen) Check(filename, text string) string {
	if filename != "" {
		name := filepath.ToSlash(filename)
		for _, g := range p.globs {
			if ok, _ := doublestar.Match(g, name); ok {
				return "filename matches " + g
			}
		}
	}
	if looksBinary(text) {
		return "binary-looking content"
	}
	if hasLongLine(text) {
		return "minified single-line content"
	}
	return ""
}

// looksBinary reports a non-ASCII ratio above binaryRatio in the first
// binarySampleRunes runes, when that sample is long enough to judge.
func looksBinary(text string) bool {
	total, nonASCII := 0, 0
	for _, r := range text {
		if total == binarySampleRunes {
			break
		}
		total++
		if r > 127 {
			nonASCII++
		}
	}
	if total <= binaryMinSample {
		return false
	}
	return float64(nonASCII)/float64(total) > binaryRatio
}

// hasLongLine reports a line starting in the first longLineScanBytes bytes
// that is longer than longLineMaxLength bytes.
func hasLongLine(text string) bool {
	start := 0
	for start < len(text) && start < longLineScanBytes {
		n := strings.IndexByte(text[start:], '\n')
		if n < 0 {
			return len(text)-start > longLineMaxLength
		}
		if n > longLineMaxLength {
			return true
		}
		start += n + 1
	}
	return false
}
