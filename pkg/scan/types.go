// Package scan locates region-specific PII in text and turns surviving
// candidates into risk-scored, deduplicated findings.
package scan

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category is the closed set of PII kinds the scanner recognises.
type Category string

const (
	CategoryAadhaar        Category = "AADHAAR"
	CategoryPAN            Category = "PAN"
	CategoryPassport       Category = "PASSPORT"
	CategoryVoterID        Category = "VOTER_ID"
	CategoryDrivingLicence Category = "DRIVING_LICENCE"
	CategorySSN            Category = "SSN"
	CategoryCreditCard     Category = "CREDIT_CARD"
	CategoryIFSC           Category = "IFSC"
	CategoryEmail          Category = "EMAIL"
	CategoryPhone          Category = "PHONE"
	CategoryGSTIN          Category = "GSTIN"
	CategoryUPI            Category = "UPI"
	CategoryABHA           Category = "ABHA"
	CategoryPerson         Category = "PERSON"
)

// categoryOrder fixes iteration order for patterns and tie-breaks.
var categoryOrder = []Category{
	CategoryAadhaar,
	CategoryPAN,
	CategoryPassport,
	CategoryVoterID,
	CategoryDrivingLicence,
	CategorySSN,
	CategoryCreditCard,
	CategoryIFSC,
	CategoryEmail,
	CategoryPhone,
	CategoryGSTIN,
	CategoryUPI,
	CategoryABHA,
	CategoryPerson,
}

// AllCategories returns every category in canonical order.
func AllCategories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c.rank() >= 0
}

// rank returns the canonical position of c, or -1.
func (c Category) rank() int {
	for i, known := range categoryOrder {
		if known == c {
			return i
		}
	}
	return -1
}

// DisplayName returns a human-readable label for reports.
func (c Category) DisplayName() string {
	switch c {
	case CategoryAadhaar:
		return "Aadhaar Number"
	case CategoryPAN:
		return "PAN Card"
	case CategoryPassport:
		return "Indian Passport"
	case CategoryVoterID:
		return "Voter ID"
	case CategoryDrivingLicence:
		return "Driving Licence"
	case CategorySSN:
		return "US SSN"
	case CategoryCreditCard:
		return "Credit/Debit Card"
	case CategoryIFSC:
		return "IFSC Code"
	case CategoryEmail:
		return "Email Address"
	case CategoryPhone:
		return "Phone Number"
	case CategoryGSTIN:
		return "GSTIN"
	case CategoryUPI:
		return "UPI ID"
	case CategoryABHA:
		return "ABHA Health ID"
	case CategoryPerson:
		return "Person Name"
	default:
		return string(c)
	}
}

// Mode selects the classifier strategy for a scan.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeDeep Mode = "deep"
)

// ParseMode converts a mode name. The empty string selects fast mode.
func ParseMode(name string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(name))); m {
	case ModeFast, ModeDeep:
		return m, nil
	case "":
		return ModeFast, nil
	default:
		return "", fmt.Errorf("unknown scan mode %q", name)
	}
}

// Tier is the coarse deep-mode severity bucket. Fast-mode findings carry TierNone.
type Tier string

const (
	TierNone          Tier = ""
	TierConfirmedLeak Tier = "CONFIRMED_LEAK"
	TierProbableLeak  Tier = "PROBABLE_LEAK"
)

// Severity thresholds for deep-mode tiers.
const (
	ConfirmedLeakThreshold = 0.82
	ProbableLeakThreshold  = 0.58
)

// TierFor maps a deep-mode confidence to its tier. TierNone means the
// finding falls below the reporting threshold.
func TierFor(confidence float64) Tier {
	switch {
	case confidence >= ConfirmedLeakThreshold:
		return TierConfirmedLeak
	case confidence >= ProbableLeakThreshold:
		return TierProbableLeak
	default:
		return TierNone
	}
}

// Risk is the display risk bucket attached to each finding.
type Risk string

const (
	RiskLow      Risk = "Low"
	RiskMedium   Risk = "Medium"
	RiskHigh     Risk = "High"
	RiskCritical Risk = "Critical"
)

// Value returns numeric value for risk comparison
func (r Risk) Value() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// categoryRisk is the default display risk when no tier is assigned.
var categoryRisk = map[Category]Risk{
	CategoryAadhaar:        RiskCritical,
	CategoryPAN:            RiskHigh,
	CategoryGSTIN:          RiskHigh,
	CategoryPassport:       RiskHigh,
	CategoryVoterID:        RiskMedium,
	CategoryDrivingLicence: RiskMedium,
	CategorySSN:            RiskCritical,
	CategoryCreditCard:     RiskCritical,
	CategoryIFSC:           RiskLow,
	CategoryEmail:          RiskLow,
	CategoryPhone:          RiskMedium,
	CategoryUPI:            RiskMedium,
	CategoryABHA:           RiskHigh,
}

// RiskFor derives the display risk from a tier, falling back to the
// category's inherent risk.
func RiskFor(category Category, tier Tier) Risk {
	switch tier {
	case TierConfirmedLeak:
		return RiskCritical
	case TierProbableLeak:
		return RiskHigh
	}
	if r, ok := categoryRisk[category]; ok {
		return r
	}
	return RiskLow
}

// Span is a half-open byte range [Start, End) into the scanned text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Shift returns the span moved by offset.
func (s Span) Shift(offset int) Span {
	return Span{Start: s.Start + offset, End: s.End + offset}
}

// Candidate is a pattern match that has not been validated yet.
type Candidate struct {
	Category Category
	Value    string
	Span     Span
}

// Finding is one detected PII instance. Findings are immutable once the
// classifier emits them; adjustments produce a new value via WithAdjustment.
type Finding struct {
	ID           string       `json:"id"`
	Category     Category     `json:"category"`
	RawValue     string       `json:"-"`
	MaskedValue  string       `json:"masked_value"`
	ValueHash    string       `json:"value_hash"`
	Span         Span         `json:"span"`
	Confidence   float64      `json:"confidence"`
	Tier         Tier         `json:"severity_tier,omitempty"`
	Risk         Risk         `json:"risk"`
	Reason       string       `json:"decision_reason"`
	Snippet      string       `json:"context_snippet"`
	Distribution Distribution `json:"distribution,omitempty"`
	Annotations  []string     `json:"annotations,omitempty"`
}

// WithAdjustment returns a copy of f carrying a new confidence and an extra
// annotation. The receiver is left untouched.
func (f Finding) WithAdjustment(confidence float64, annotation string) Finding {
	out := f
	out.Confidence = confidence
	out.Annotations = make([]string, 0, len(f.Annotations)+1)
	out.Annotations = append(out.Annotations, f.Annotations...)
	if annotation != "" {
		out.Annotations = append(out.Annotations, annotation)
	}
	if f.Distribution != nil {
		out.Distribution = append(Distribution(nil), f.Distribution...)
	}
	return out
}

// Options are the per-call scan settings.
type Options struct {
	Mode Mode `json:"mode"`

	// Filename is only used for pre-screen skip rules.
	Filename string `json:"filename,omitempty"`

	// Source is an opaque provenance tag carried into logs.
	Source string `json:"source,omitempty"`
}

// Result is the outcome of a single Scan call.
type Result struct {
	ID            string        `json:"id"`
	Findings      []Finding     `json:"findings"`
	Mode          Mode          `json:"mode"`
	Degraded      bool          `json:"degraded"`
	Skipped       bool          `json:"skipped"`
	SkipReason    string        `json:"skip_reason,omitempty"`
	Chunks        int           `json:"chunks"`
	ContentLength int           `json:"content_length"`
	ScannedAt     time.Time     `json:"scanned_at"`
	Duration      time.Duration `json:"duration"`
}

// Categories returns the distinct categories present in the result, in
// canonical order.
func (r *Result) Categories() []Category {
	return DistinctCategories(r.Findings)
}

// DistinctCategories returns the distinct categories of findings in
// canonical order.
func DistinctCategories(findings []Finding) []Category {
	seen := make(map[Category]bool, len(findings))
	for _, f := range findings {
		seen[f.Category] = true
	}
	out := make([]Category, 0, len(seen))
	for _, c := range categoryOrder {
		if seen[c] {
			out = append(out, c)
			delete(seen, c)
		}
	}
	// categories registered by callers go last
	extra := make([]Category, 0, len(seen))
	for c := range seen {
		extra = append(extra, c)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
