package scan

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// boundaryFunc inspects the runes around a raw regex match. It stands in
// for lookaround assertions, which RE2 does not support.
type boundaryFunc func(text string, start, end int) bool

// baseMatcher provides common functionality for pattern matchers
type baseMatcher struct {
	id          string
	name        string
	category    Category
	pattern     *regexp.Regexp
	boundary    boundaryFunc
	validator   Validator
	description string
}

// GetID returns the pattern identifier
func (m *baseMatcher) GetID() string {
	return m.id
}

// GetName returns the human-readable pattern name
func (m *baseMatcher) GetName() string {
	return m.name
}

// GetCategory returns the PII category this matcher emits
func (m *baseMatcher) GetCategory() Category {
	return m.category
}

// GetDescription returns a short description of the pattern
func (m *baseMatcher) GetDescription() string {
	return m.description
}

// Match finds all non-overlapping candidate spans in text
func (m *baseMatcher) Match(text string) []Candidate {
	if m.pattern == nil {
		return nil
	}
	if m.boundary == nil {
		return m.findAllMatches(text)
	}
	return m.findBoundedMatches(text)
}

// Validate runs the category validator; matchers without one accept all
func (m *baseMatcher) Validate(value, context string) bool {
	if m.validator == nil {
		return true
	}
	return m.validator(value, context)
}

// findAllMatches relies on the engine's own leftmost, non-overlapping semantics
func (m *baseMatcher) findAllMatches(text string) []Candidate {
	indices := m.pattern.FindAllStringIndex(text, -1)
	if len(indices) == 0 {
		return nil
	}

	matches := make([]Candidate, 0, len(indices))
	for _, idx := range indices {
		start, end := idx[0], idx[1]
		if start == end {
			continue
		}
		matches = append(matches, Candidate{
			Category: m.category,
			Value:    text[start:end],
			Span:     Span{Start: start, End: end},
		})
	}
	return matches
}

// findBoundedMatches walks the text match by match. When the boundary check
// rejects a match the search resumes one byte after its start, the same
// position a backtracking engine would try next.
func (m *baseMatcher) findBoundedMatches(text string) []Candidate {
	var matches []Candidate
	pos := 0
	for pos < len(text) {
		loc := m.pattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if start == end {
			pos = end + 1
			continue
		}
		if !m.boundary(text, start, end) {
			pos = start + 1
			continue
		}
		matches = append(matches, Candidate{
			Category: m.category,
			Value:    text[start:end],
			Span:     Span{Start: start, End: end},
		})
		pos = end
	}
	return matches
}

// runeBefore returns the rune ending at start, or utf8.RuneError at the
// beginning of text.
func runeBefore(text string, start int) (rune, bool) {
	if start <= 0 {
		return utf8.RuneError, false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:start])
	return r, true
}

// runeAfter returns the rune starting at end, or utf8.RuneError at the end
// of text.
func runeAfter(text string, end int) (rune, bool) {
	if end >= len(text) {
		return utf8.RuneError, false
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return r, true
}

// nonDigitBoundary requires a non-digit (or text edge) on both sides.
func nonDigitBoundary(text string, start, end int) bool {
	if r, ok := runeBefore(text, start); ok && unicode.IsDigit(r) {
		return false
	}
	if r, ok := runeAfter(text, end); ok && unicode.IsDigit(r) {
		return false
	}
	return true
}

// isWordRune mirrors the \w class used by word boundaries.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordBoundaryNoDecimal requires a word boundary on both sides and forbids
// an adjacent decimal point, so 123-45-6789.5 or v1.123-45-6789 never match.
func wordBoundaryNoDecimal(text string, start, end int) bool {
	if r, ok := runeBefore(text, start); ok && (isWordRune(r) || r == '.') {
		return false
	}
	if r, ok := runeAfter(text, end); ok && (isWordRune(r) || r == '.') {
		return false
	}
	return true
}
