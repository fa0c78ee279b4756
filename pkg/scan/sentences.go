package scan

import (
	"strings"
	"unicode/utf8"
)

// SentenceLocator returns the sentence that fully contains a span, or ""
// when the span crosses a sentence boundary or no sentence can be found.
type SentenceLocator interface {
	Sentence(text string, span Span) string
}

// maxSentenceReach bounds how far the rule-based locator walks in each
// direction looking for a boundary.
const maxSentenceReach = 1000

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"shri": true, "smt": true, "sri": true, "kum": true,
	"no": true, "vs": true, "etc": true, "eg": true, "ie": true,
	"st": true, "jr": true, "sr": true, "co": true, "ltd": true,
}

// RuleSentenceLocator splits on terminal punctuation followed by
// whitespace and on line breaks.
type RuleSentenceLocator struct{}

// Sentence implements SentenceLocator.
func (RuleSentenceLocator) Sentence(text string, span Span) string {
	if span.Start < 0 || span.End > len(text) || span.Start >= span.End {
		return ""
	}
	if strings.ContainsAny(text[span.Start:span.End], "\n\r") {
		return ""
	}

	floor := span.Start - maxSentenceReach
	if floor < 0 {
		floor = 0
	}
	start := floor
	for i := span.Start - 1; i >= floor; i-- {
		c := text[i]
		if c == '\n' || c == '\r' {
			start = i + 1
			break
		}
		if isTerminator(c) && i+1 < span.Start && isSpace(text[i+1]) && !endsWithAbbreviation(text, i) {
			start = i + 1
			break
		}
	}

	ceil := span.End + maxSentenceReach
	if ceil > len(text) {
		ceil = len(text)
	}
	end := ceil
	for j := span.End; j < ceil; j++ {
		c := text[j]
		if c == '\n' || c == '\r' {
			end = j
			break
		}
		if isTerminator(c) && (j+1 == len(text) || isSpace(text[j+1])) && !endsWithAbbreviation(text, j) {
			end = j + 1
			break
		}
	}

	for start < span.Start && !utf8.RuneStart(text[start]) {
		start++
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.TrimSpace(text[start:end])
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// endsWithAbbreviation reports whether the word ending just before the
// terminator at pos is a known abbreviation.
func endsWithAbbreviation(text string, pos int) bool {
	if text[pos] != '.' {
		return false
	}
	i := pos - 1
	for i >= 0 && isASCIILetter(text[i]) {
		i--
	}
	word := strings.ToLower(text[i+1 : pos])
	if word == "" {
		return false
	}
	// single capital initials such as "A." in "A. Kumar"
	if len(word) == 1 {
		return true
	}
	return abbreviations[word]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
