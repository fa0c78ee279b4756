package scan

import (
	"context"
	"sort"
)

// Judge performs zero-shot classification of a text against candidate
// labels. Implementations live in pkg/semantic; any returned error is
// treated by callers as a degraded judgment.
type Judge interface {
	Classify(ctx context.Context, text string, labels []string) (Distribution, error)
}

// JudgeFunc adapts a function to the Judge interface.
type JudgeFunc func(ctx context.Context, text string, labels []string) (Distribution, error)

// Classify calls f.
func (f JudgeFunc) Classify(ctx context.Context, text string, labels []string) (Distribution, error) {
	return f(ctx, text, labels)
}

// LabelScore is one label's probability in a distribution.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Distribution is a set of label probabilities ordered by descending score.
type Distribution []LabelScore

// NewDistribution builds a sorted distribution from a label->score map.
// Ties are ordered by label so results are deterministic.
func NewDistribution(scores map[string]float64) Distribution {
	d := make(Distribution, 0, len(scores))
	for label, score := range scores {
		d = append(d, LabelScore{Label: label, Score: score})
	}
	sort.Slice(d, func(i, j int) bool {
		if d[i].Score != d[j].Score {
			return d[i].Score > d[j].Score
		}
		return d[i].Label < d[j].Label
	})
	return d
}

// Top returns the highest-scoring label, or a zero value when empty.
func (d Distribution) Top() LabelScore {
	if len(d) == 0 {
		return LabelScore{}
	}
	return d[0]
}

// Score returns the probability of label, or 0 when absent.
func (d Distribution) Score(label string) float64 {
	for _, ls := range d {
		if ls.Label == label {
			return ls.Score
		}
	}
	return 0
}

// Mass sums the probabilities of the given labels.
func (d Distribution) Mass(labels []string) float64 {
	total := 0.0
	for _, l := range labels {
		total += d.Score(l)
	}
	return total
}

// Peak returns the largest probability among the given labels.
func (d Distribution) Peak(labels []string) float64 {
	peak := 0.0
	for _, l := range labels {
		if s := d.Score(l); s > peak {
			peak = s
		}
	}
	return peak
}

// Risk label partitions used for deep-mode sentence judgments.
var (
	HighRiskLabels = []string{
		"someone's real personal information being shared or exposed",
		"private data accidentally or intentionally disclosed",
		"sensitive information belonging to a real individual",
	}
	AmbiguousLabels = []string{
		"information that may or may not be real personal data",
	}
	LowRiskLabels = []string{
		"a fictional, fake, or made-up example used for illustration",
		"masked, redacted, or anonymised data",
		"technical documentation or format specification",
	}
)

// RiskLabels returns the full candidate label set for sentence judgments.
func RiskLabels() []string {
	out := make([]string, 0, len(HighRiskLabels)+len(AmbiguousLabels)+len(LowRiskLabels))
	out = append(out, HighRiskLabels...)
	out = append(out, AmbiguousLabels...)
	out = append(out, LowRiskLabels...)
	return out
}
