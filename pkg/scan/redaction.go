package scan

import (
	"fmt"
	"sort"
	"strings"
)

// MaskToken replaces the hidden part of a masked value.
const MaskToken = "****"

// Mask keeps the first 4 and last 4 bytes of values longer than 8, and
// only the first 2 bytes otherwise.
func Mask(value string) string {
	if len(value) > 8 {
		return value[:4] + MaskToken + value[len(value)-4:]
	}
	if len(value) > 2 {
		return value[:2] + MaskToken
	}
	return value + MaskToken
}

// RedactionStrategy defines how detected values are replaced in content
type RedactionStrategy string

const (
	// RedactionMask substitutes the masked projection of the value
	RedactionMask RedactionStrategy = "mask"
	// RedactionReplace substitutes a category placeholder
	RedactionReplace RedactionStrategy = "replace"
	// RedactionHash substitutes a short value hash
	RedactionHash RedactionStrategy = "hash"
)

// ParseRedactionStrategy converts a name to a strategy.
func ParseRedactionStrategy(name string) (RedactionStrategy, error) {
	switch s := RedactionStrategy(strings.ToLower(name)); s {
	case RedactionMask, RedactionReplace, RedactionHash:
		return s, nil
	case "":
		return RedactionMask, nil
	default:
		return "", fmt.Errorf("unknown redaction strategy %q", name)
	}
}

// Redact rewrites content with every finding span replaced according to
// strategy. Findings must come from a scan of the same content.
func Redact(content string, findings []Finding, strategy RedactionStrategy) (string, error) {
	if len(findings) == 0 {
		return content, nil
	}

	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Span.Start < sorted[j].Span.Start
	})

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, f := range sorted {
		if f.Span.Start < pos || f.Span.End > len(content) || f.Span.Start >= f.Span.End {
			return "", fmt.Errorf("finding %s has span [%d,%d) outside content or overlapping a previous finding",
				f.ID, f.Span.Start, f.Span.End)
		}
		b.WriteString(content[pos:f.Span.Start])
		b.WriteString(replacement(content[f.Span.Start:f.Span.End], f, strategy))
		pos = f.Span.End
	}
	b.WriteString(content[pos:])
	return b.String(), nil
}

func replacement(original string, f Finding, strategy RedactionStrategy) string {
	switch strategy {
	case RedactionReplace:
		return "[" + string(f.Category) + "_REDACTED]"
	case RedactionHash:
		hash := f.ValueHash
		if hash == "" {
			hash = HashValue(original)
		}
		return "HASH:" + hash[:8]
	default:
		return Mask(original)
	}
}
