package score

import (
	"math"
	"sort"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

// Label is the severity band of a score.
type Label string

const (
	LabelCritical Label = "CRITICAL"
	LabelHigh     Label = "HIGH"
	LabelMedium   Label = "MEDIUM"
	LabelLow      Label = "LOW"
	LabelInfo     Label = "INFO"
)

// Value returns numeric value for label comparison
func (l Label) Value() int {
	switch l {
	case LabelCritical:
		return 5
	case LabelHigh:
		return 4
	case LabelMedium:
		return 3
	case LabelLow:
		return 2
	case LabelInfo:
		return 1
	default:
		return 0
	}
}

// LabelFor maps a score to its band and display color.
func LabelFor(score float64) (Label, string) {
	switch {
	case score >= 9.0:
		return LabelCritical, "#ff2d2d"
	case score >= 7.0:
		return LabelHigh, "#ff6b00"
	case score >= 5.0:
		return LabelMedium, "#ffc107"
	case score >= 2.5:
		return LabelLow, "#4fc3f7"
	default:
		return LabelInfo, "#aaaaaa"
	}
}

const (
	// MaxScore is the upper clamp of every score.
	MaxScore = 10.0

	penaltyFactor = 1.5
	noToxicLabel  = "none"
	noFindingNote = "No findings"
)

// Breakdown keeps every intermediate step of a source score.
type Breakdown struct {
	BaseScore         float64 `json:"base_score"`
	AfterToxicCombo   float64 `json:"after_toxic_combo"`
	AfterExposure     float64 `json:"after_exposure"`
	ConfidencePenalty float64 `json:"confidence_penalty"`
	FinalScore        float64 `json:"final_score"`
}

// SourceScore is the ESS of one source.
type SourceScore struct {
	Score              float64         `json:"ess_score"`
	Label              Label           `json:"label"`
	Color              string          `json:"color"`
	BaseScore          float64         `json:"base_score"`
	ToxicComboLabel    string          `json:"toxic_combo_label"`
	ToxicMultiplier    float64         `json:"toxic_multiplier"`
	Channel            Channel         `json:"channel"`
	ExposureMultiplier float64         `json:"exposure_multiplier"`
	ConfidencePenalty  float64         `json:"confidence_penalty"`
	CategoriesFound    []scan.Category `json:"categories_found"`
	FindingCount       int             `json:"finding_count"`
	Breakdown          Breakdown       `json:"breakdown"`
	Note               string          `json:"note,omitempty"`
}

// Summary aggregates many source scores.
type Summary struct {
	MaxESS       float64         `json:"max_ess"`
	AvgESS       float64         `json:"avg_ess"`
	Label        Label           `json:"label"`
	Color        string          `json:"color"`
	TotalSources int             `json:"total_sources"`
	AllTypes     []scan.Category `json:"all_types"`
}

// Scorer computes scores from a fixed set of tables. It is safe for
// concurrent use.
type Scorer struct {
	tables Tables
}

// NewScorer creates a scorer over tables.
func NewScorer(tables Tables) *Scorer {
	return &Scorer{tables: tables}
}

var defaultScorer = NewScorer(DefaultTables())

// ScoreSource scores findings with the default tables.
func ScoreSource(findings []scan.Finding, channel Channel) SourceScore {
	return defaultScorer.ScoreSource(findings, channel)
}

// Aggregate summarises scores with the default tables.
func Aggregate(scores []SourceScore) Summary {
	return defaultScorer.Aggregate(scores)
}

// Tables returns the scorer's tables.
func (s *Scorer) Tables() Tables {
	return s.tables
}

// ScoreSource computes the ESS of one source.
func (s *Scorer) ScoreSource(findings []scan.Finding, channel Channel) SourceScore {
	channel = ParseChannel(string(channel))

	// An empty source scores the same on every channel.
	if len(findings) == 0 {
		label, color := LabelFor(0)
		return SourceScore{
			Label:              label,
			Color:              color,
			ToxicComboLabel:    noToxicLabel,
			ToxicMultiplier:    1.0,
			Channel:            channel,
			ExposureMultiplier: 1.0,
			CategoriesFound:    []scan.Category{},
			Note:               noFindingNote,
		}
	}

	exposure := s.tables.ChannelMultiplier(channel)
	found := make(map[scan.Category]bool)
	base := 0.0
	confSum := 0.0
	for _, f := range findings {
		if !found[f.Category] {
			found[f.Category] = true
			if w := s.tables.Weight(f.Category); w > base {
				base = w
			}
		}
		confSum += f.Confidence
	}

	multiplier, comboLabel := 1.0, noToxicLabel
	if rule, ok := s.tables.bestToxicRule(found); ok {
		multiplier, comboLabel = rule.Multiplier, rule.Label
	}

	afterToxic := base * multiplier
	afterExposure := afterToxic * exposure
	avgConf := confSum / float64(len(findings))
	penalty := round(math.Max(0, 1-avgConf)*penaltyFactor, 3)
	final := round(clamp(afterExposure-penalty, 0, MaxScore), 2)

	label, color := LabelFor(final)
	return SourceScore{
		Score:              final,
		Label:              label,
		Color:              color,
		BaseScore:          base,
		ToxicComboLabel:    comboLabel,
		ToxicMultiplier:    multiplier,
		Channel:            channel,
		ExposureMultiplier: exposure,
		ConfidencePenalty:  penalty,
		CategoriesFound:    sortedCategories(found),
		FindingCount:       len(findings),
		Breakdown: Breakdown{
			BaseScore:         base,
			AfterToxicCombo:   round(afterToxic, 3),
			AfterExposure:     round(afterExposure, 3),
			ConfidencePenalty: penalty,
			FinalScore:        final,
		},
	}
}

// Aggregate summarises many source scores: the maximum, the mean, the
// band of the maximum and the union of categories.
func (s *Scorer) Aggregate(scores []SourceScore) Summary {
	if len(scores) == 0 {
		label, color := LabelFor(0)
		return Summary{Label: label, Color: color, AllTypes: []scan.Category{}}
	}

	maxScore, sum := 0.0, 0.0
	types := make(map[scan.Category]bool)
	for _, sc := range scores {
		if sc.Score > maxScore {
			maxScore = sc.Score
		}
		sum += sc.Score
		for _, c := range sc.CategoriesFound {
			types[c] = true
		}
	}

	label, color := LabelFor(maxScore)
	return Summary{
		MaxESS:       maxScore,
		AvgESS:       round(sum/float64(len(scores)), 2),
		Label:        label,
		Color:        color,
		TotalSources: len(scores),
		AllTypes:     sortedCategories(types),
	}
}

func sortedCategories(set map[scan.Category]bool) []scan.Category {
	out := make([]scan.Category, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
