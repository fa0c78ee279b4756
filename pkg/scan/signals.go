package scan

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Context signal vocabularies. All are case-insensitive.
var (
	ownershipPattern = regexp.MustCompile(`(?i)\b(my|his|her|your|their|our|client'?s?|customer'?s?|user'?s?)\b`)

	maskedPattern = regexp.MustCompile(`(?i)[x*]{3,}`)

	dummyPattern = regexp.MustCompile(`(?i)\b(dummy|fake|test\s+data|test\s+card|testing|sample|demo|placeholder|for\s+illustration|not\s+real|fictitious|mock[\s\-]?up|documentation\s+example|format\s+example|use\s+\S+\s+as\s+a)\b`)

	technicalPattern = regexp.MustCompile(`(?i)\b(dimensions?|ratios?|resolutions?|versions?|v\d+|subnets?|ip\s+address|weights?|heights?|widths?|pixels?|px|cm|mm|inches?|sizes?|configs?|coordinates?|measurements?)\b`)

	keywordPattern = regexp.MustCompile(`(?i)\b(aadhaar|aadhar|pan|kyc|passport|voter\s?id|driving\s?licen[cs]e|credit\s?card|debit\s?card|bank\s?account|ifsc|ssn|social\s?security|phone\s?number|mobile\s?number|whatsapp|email\s+address|my\s+email|email\s+was|email\s+got|confidential|leaked|disclosed|exposed|accidentally|mistakenly)\b`)
)

// Context window radii in bytes.
const (
	ValidatorRadius = 100
	FastRadius      = 80
	SnippetRadius   = 80
	EntityRadius    = 200
)

// KeywordFloor is the minimum risk once a PII keyword is seen in context.
const KeywordFloor = 0.70

// Signals are the independent regex detectors evaluated over one context.
type Signals struct {
	Ownership bool `json:"ownership"`
	Masked    bool `json:"masked"`
	Dummy     bool `json:"dummy"`
	Technical bool `json:"technical"`
	Keyword   bool `json:"keyword"`
}

// AnalyzeContext evaluates every signal detector over text.
func AnalyzeContext(text string) Signals {
	return Signals{
		Ownership: ownershipPattern.MatchString(text),
		Masked:    maskedPattern.MatchString(text),
		Dummy:     dummyPattern.MatchString(text),
		Technical: technicalPattern.MatchString(text),
		Keyword:   keywordPattern.MatchString(text),
	}
}

// HasKeyword reports whether text names a PII type or a disclosure verb.
func HasKeyword(text string) bool {
	return keywordPattern.MatchString(text)
}

// ApplyKeywordFloor raises risk to KeywordFloor when a keyword is present.
// It never lowers risk.
func ApplyKeywordFloor(risk float64, keyword bool) float64 {
	if keyword && risk < KeywordFloor {
		return KeywordFloor
	}
	return risk
}

// Window returns text[start-radius : end+radius], clamped to the text and
// widened outward to rune boundaries.
func Window(text string, span Span, radius int) string {
	lo, hi := windowBounds(text, span, radius)
	return text[lo:hi]
}

func windowBounds(text string, span Span, radius int) (int, int) {
	lo := span.Start - radius
	if lo < 0 {
		lo = 0
	}
	hi := span.End + radius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return lo, hi
}

// Snippet returns the display context around a span: a SnippetRadius window
// with the span itself masked, newlines flattened to spaces and surrounding
// whitespace trimmed.
func Snippet(text string, span Span) string {
	lo, hi := windowBounds(text, span, SnippetRadius)
	w := text[lo:span.Start] + Mask(text[span.Start:span.End]) + text[span.End:hi]
	w = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(w)
	return strings.TrimSpace(w)
}
