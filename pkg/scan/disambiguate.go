package scan

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
)

// Fake-data disambiguation thresholds.
const (
	FakeThreshold      = 0.55
	FakeKeywordProb    = 0.95
	FakeDampening      = 0.8
	FakeDropConfidence = 0.15
)

// Fake-data label set. RealDataLabel is the only label that does not count
// towards the fake probability.
const (
	RealDataLabel = "real personal data"
	TestDataLabel = "test or dummy data"
	CodeLabel     = "code variable or identifier"
	ExampleLabel  = "example or sample data"

	keywordLabel = "fake-data keyword"
)

// FakeDataLabels returns the candidate labels sent to the judge.
func FakeDataLabels() []string {
	return []string{RealDataLabel, TestDataLabel, CodeLabel, ExampleLabel}
}

var fakeKeywordPattern = regexp.MustCompile(`(?i)\b(test|dummy|fake|example|sample|mock|placeholder|lorem|ipsum|foobar|john\s+doe|jane\s+doe|xxx|todo|fixture|seed|factory|stub|demo|temp|tmp)\b`)

// disambiguatedCategories are the categories where fake values are common
// enough to be worth a second look.
var disambiguatedCategories = map[Category]bool{
	CategoryAadhaar:    true,
	CategoryPAN:        true,
	CategoryGSTIN:      true,
	CategoryCreditCard: true,
	CategoryPerson:     true,
	CategoryPassport:   true,
	CategoryABHA:       true,
	CategoryUPI:        true,
}

// Disambiguator lowers confidence of findings that look like test or
// example data, and drops the ones that end up negligible.
type Disambiguator struct {
	judge  Judge
	logger *slog.Logger
}

// NewDisambiguator creates a disambiguator. Without a judge only the
// keyword check runs.
func NewDisambiguator(judge Judge, logger *slog.Logger) *Disambiguator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Disambiguator{judge: judge, logger: logger}
}

// Apply returns the adjusted finding set. Input findings are not modified.
func (d *Disambiguator) Apply(ctx context.Context, text string, findings []Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if !disambiguatedCategories[f.Category] {
			out = append(out, f)
			continue
		}

		label, p := d.fakeProbability(ctx, Window(text, f.Span, ValidatorRadius))
		if p <= FakeThreshold {
			out = append(out, f)
			continue
		}

		conf := round3(f.Confidence * (1 - p*FakeDampening))
		// Deep-mode findings carry a tier; it follows the new confidence.
		tier := f.Tier
		if tier != TierNone {
			tier = TierFor(conf)
		}
		if conf < FakeDropConfidence || (f.Tier != TierNone && tier == TierNone) {
			metrics.RecordDrop(string(f.Category), DropFake)
			d.logger.Debug("finding dropped as fake data",
				"category", f.Category,
				"masked_value", f.MaskedValue,
				"label", label,
				"probability", p,
			)
			continue
		}
		adjusted := f.WithAdjustment(conf, fmt.Sprintf("likely fake (%s, p=%.2f)", label, p))
		if f.Tier != TierNone {
			adjusted.Tier = tier
			adjusted.Risk = RiskFor(f.Category, tier)
		}
		out = append(out, adjusted)
	}
	return out
}

// fakeProbability returns the strongest non-real label and the combined
// probability of every non-real label. A judge failure counts as no
// evidence.
func (d *Disambiguator) fakeProbability(ctx context.Context, window string) (string, float64) {
	if fakeKeywordPattern.MatchString(window) {
		return keywordLabel, FakeKeywordProb
	}
	if d.judge == nil {
		return "", 0
	}

	dist, err := d.judge.Classify(ctx, window, FakeDataLabels())
	if err != nil {
		d.logger.Debug("fake-data judgment failed", "error", err)
		return "", 0
	}

	var best LabelScore
	var total float64
	for _, ls := range dist {
		if ls.Label == RealDataLabel {
			continue
		}
		total += ls.Score
		if ls.Score > best.Score {
			best = ls
		}
	}
	return best.Label, round3(total)
}
