package scan

import (
	"regexp"
)

// NameFinder locates person names in text. Names found this way feed the
// nearby-person boost and are reported as PERSON findings in deep mode.
type NameFinder interface {
	FindNames(text string) []Candidate
}

// NameFinderFunc adapts a function to the NameFinder interface.
type NameFinderFunc func(text string) []Candidate

// FindNames calls f.
func (f NameFinderFunc) FindNames(text string) []Candidate {
	return f(text)
}

// personCuePattern finds 1-4 capitalised words introduced by an honorific
// or a naming phrase. Group 1 is the name.
var personCuePattern = regexp.MustCompile(
	`(?:\b(?:Mr|Mrs|Ms|Dr|Prof|Shri|Smt|Sri|Kum)\.?[ \t]+|(?i:\bname[ \t]+is|\bnamed|\bcalled|\bname[ \t]*:)[ \t]*)` +
		`([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){0,3})\b`)

// HeuristicNameFinder recognises names by their surrounding cues.
type HeuristicNameFinder struct{}

// FindNames implements NameFinder.
func (HeuristicNameFinder) FindNames(text string) []Candidate {
	idx := personCuePattern.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make([]Candidate, 0, len(idx))
	for _, m := range idx {
		start, end := m[2], m[3]
		if start < 0 || start >= end {
			continue
		}
		value := text[start:end]
		if IsCodeArtifact(value) {
			continue
		}
		out = append(out, Candidate{
			Category: CategoryPerson,
			Value:    value,
			Span:     Span{Start: start, End: end},
		})
	}
	return out
}
