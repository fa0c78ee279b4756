package scan

import (
	"sort"
)

// Deduplicate keeps the highest-confidence finding at each position.
// Findings are ranked by confidence, then earlier start, then canonical
// category order, and accepted greedily unless they overlap an accepted
// span. The result is sorted by start offset. Deduplicating an already
// deduplicated set returns the same set.
func Deduplicate(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}

	ranked := make([]Finding, len(findings))
	copy(ranked, findings)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return categoryLess(a.Category, b.Category)
	})

	kept := make([]Finding, 0, len(ranked))
	for _, f := range ranked {
		if overlapsAny(f.Span, kept) {
			continue
		}
		kept = append(kept, f)
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Span.Start < kept[j].Span.Start
	})
	return kept
}

func overlapsAny(span Span, accepted []Finding) bool {
	for _, a := range accepted {
		if span.Overlaps(a.Span) {
			return true
		}
	}
	return false
}

// categoryLess orders known categories canonically and unknown ones after
// them by name.
func categoryLess(a, b Category) bool {
	ra, rb := a.rank(), b.rank()
	switch {
	case ra >= 0 && rb >= 0:
		return ra < rb
	case ra >= 0:
		return true
	case rb >= 0:
		return false
	default:
		return a < b
	}
}
