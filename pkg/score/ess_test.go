package score

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

func findingsOf(conf float64, categories ...scan.Category) []scan.Finding {
	out := make([]scan.Finding, 0, len(categories))
	for _, c := range categories {
		out = append(out, scan.Finding{Category: c, Confidence: conf})
	}
	return out
}

func TestScoreSourceEmpty(t *testing.T) {
	s := ScoreSource(nil, ChannelGitHubPublic)
	assert.Equal(t, 0.0, s.Score)
	assert.Equal(t, 1.0, s.ToxicMultiplier)
	assert.Equal(t, "none", s.ToxicComboLabel)
	assert.Empty(t, s.CategoriesFound)
	assert.Equal(t, LabelInfo, s.Label)
	assert.Equal(t, "#aaaaaa", s.Color)
	assert.Equal(t, "No findings", s.Note)
	assert.Equal(t, 1.0, s.ExposureMultiplier)
	assert.Equal(t, ChannelGitHubPublic, s.Channel)

	for _, ch := range []Channel{ChannelPastebin, ChannelUnknown} {
		other := ScoreSource(nil, ch)
		other.Channel = s.Channel
		assert.Equal(t, s, other, "empty sources score the same on every channel")
	}
}

func TestScoreSourceSingleCategory(t *testing.T) {
	s := ScoreSource(findingsOf(0.8, scan.CategoryPhone), ChannelUnknown)

	assert.Equal(t, 4.5, s.BaseScore)
	assert.Equal(t, 1.0, s.ToxicMultiplier)
	assert.Equal(t, 1.0, s.ExposureMultiplier)
	assert.InDelta(t, 0.3, s.ConfidencePenalty, 1e-9)
	assert.InDelta(t, 4.2, s.Score, 1e-9)
	assert.Equal(t, LabelLow, s.Label)
	assert.Equal(t, "#4fc3f7", s.Color)
	assert.Equal(t, []scan.Category{scan.CategoryPhone}, s.CategoriesFound)
	assert.Equal(t, 1, s.FindingCount)
}

func TestScoreSourcePairRule(t *testing.T) {
	s := ScoreSource(findingsOf(0.9, scan.CategoryEmail, scan.CategoryPhone), ChannelUnknown)

	assert.Equal(t, "Email + Phone", s.ToxicComboLabel)
	assert.Equal(t, 1.30, s.ToxicMultiplier)
	assert.InDelta(t, 5.85, s.Breakdown.AfterToxicCombo, 1e-9)
	assert.InDelta(t, 0.15, s.ConfidencePenalty, 1e-9)
	assert.InDelta(t, 5.7, s.Score, 1e-9)
	assert.Equal(t, LabelMedium, s.Label)
	assert.Equal(t, []scan.Category{scan.CategoryEmail, scan.CategoryPhone}, s.CategoriesFound)
}

func TestScoreSourceFullTriadBeatsPairs(t *testing.T) {
	s := ScoreSource(findingsOf(0.9, scan.CategoryAadhaar, scan.CategoryPAN, scan.CategoryPhone), ChannelPastebin)

	assert.Equal(t, "Full KYC triad", s.ToxicComboLabel)
	assert.Equal(t, 1.90, s.ToxicMultiplier)
	assert.Equal(t, 9.0, s.Breakdown.BaseScore)
	assert.InDelta(t, 17.1, s.Breakdown.AfterToxicCombo, 1e-9)
	assert.InDelta(t, 19.665, s.Breakdown.AfterExposure, 1e-9)
	assert.Equal(t, MaxScore, s.Score)
	assert.Equal(t, LabelCritical, s.Label)
}

func TestScoreSourceToxicRulesDoNotStack(t *testing.T) {
	s := ScoreSource(findingsOf(1.0, scan.CategoryCreditCard, scan.CategoryAadhaar, scan.CategoryPAN), ChannelUnknown)

	assert.Equal(t, 1.85, s.ToxicMultiplier)
	assert.Equal(t, "Card + Aadhaar", s.ToxicComboLabel)
	assert.InDelta(t, 9.5*1.85, s.Breakdown.AfterToxicCombo, 1e-3)
}

func TestScoreSourceRuleOrderDoesNotMatter(t *testing.T) {
	categories := []scan.Category{scan.CategoryAadhaar, scan.CategoryPAN, scan.CategoryPhone, scan.CategoryUPI, scan.CategoryPerson}
	want := ScoreSource(findingsOf(0.9, categories...), ChannelGitHubPublic)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		tables := DefaultTables()
		rng.Shuffle(len(tables.ToxicRules), func(a, b int) {
			tables.ToxicRules[a], tables.ToxicRules[b] = tables.ToxicRules[b], tables.ToxicRules[a]
		})
		got := NewScorer(tables).ScoreSource(findingsOf(0.9, categories...), ChannelGitHubPublic)
		require.Equal(t, want.ToxicComboLabel, got.ToxicComboLabel)
		require.Equal(t, want.ToxicMultiplier, got.ToxicMultiplier)
		require.Equal(t, want.Score, got.Score)
	}
}

func TestScoreSourceEqualMultipliersKeepEarlierRule(t *testing.T) {
	tables := DefaultTables()
	tables.ToxicRules = []ToxicRule{
		{Categories: []scan.Category{scan.CategoryEmail}, Multiplier: 1.4, Label: "first"},
		{Categories: []scan.Category{scan.CategoryPhone}, Multiplier: 1.4, Label: "second"},
	}
	s := NewScorer(tables).ScoreSource(findingsOf(0.9, scan.CategoryEmail, scan.CategoryPhone), ChannelUnknown)
	assert.Equal(t, "first", s.ToxicComboLabel)
}

func TestScoreSourceChannels(t *testing.T) {
	tests := []struct {
		channel Channel
		want    float64
	}{
		{ChannelGitHubPublic, 1.30},
		{ChannelGitLabPublic, 1.25},
		{ChannelPastebin, 1.15},
		{ChannelUnknown, 1.00},
		{Channel("GitHub_Public"), 1.30},
		{Channel("carrier_pigeon"), 1.00},
	}

	for _, tt := range tests {
		t.Run(string(tt.channel), func(t *testing.T) {
			s := ScoreSource(findingsOf(1.0, scan.CategoryEmail), tt.channel)
			assert.Equal(t, tt.want, s.ExposureMultiplier)
		})
	}

	tables := DefaultTables().WithChannels(map[string]float64{"telegram": 1.2})
	s := NewScorer(tables).ScoreSource(findingsOf(1.0, scan.CategoryEmail), Channel("telegram"))
	assert.Equal(t, 1.2, s.ExposureMultiplier)
	assert.InDelta(t, 3.6, s.Score, 1e-9)
}

func TestScoreSourceUnknownCategoryUsesDefaultWeight(t *testing.T) {
	s := ScoreSource(findingsOf(1.0, scan.Category("EMPLOYEE_ID")), ChannelUnknown)
	assert.Equal(t, DefaultWeight, s.BaseScore)
}

func TestScoreSourceBounds(t *testing.T) {
	categories := scan.AllCategories()
	channels := []Channel{ChannelGitHubPublic, ChannelGitLabPublic, ChannelPastebin, ChannelUnknown, Channel("other")}
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 2000; i++ {
		n := rng.Intn(12)
		findings := make([]scan.Finding, 0, n)
		for j := 0; j < n; j++ {
			findings = append(findings, scan.Finding{
				Category:   categories[rng.Intn(len(categories))],
				Confidence: rng.Float64(),
			})
		}
		s := ScoreSource(findings, channels[rng.Intn(len(channels))])
		require.GreaterOrEqual(t, s.Score, 0.0)
		require.LessOrEqual(t, s.Score, MaxScore)
		require.GreaterOrEqual(t, s.ToxicMultiplier, 1.0)
	}
}

func TestAggregate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		sum := Aggregate(nil)
		assert.Equal(t, 0.0, sum.MaxESS)
		assert.Equal(t, 0.0, sum.AvgESS)
		assert.Equal(t, LabelInfo, sum.Label)
		assert.Equal(t, "#aaaaaa", sum.Color)
		assert.Equal(t, 0, sum.TotalSources)
		assert.Empty(t, sum.AllTypes)
	})

	t.Run("many sources", func(t *testing.T) {
		scores := []SourceScore{
			ScoreSource(findingsOf(0.8, scan.CategoryPhone), ChannelUnknown),
			ScoreSource(findingsOf(0.9, scan.CategoryEmail, scan.CategoryPhone), ChannelUnknown),
			ScoreSource(findingsOf(0.9, scan.CategoryAadhaar, scan.CategoryPAN, scan.CategoryPhone), ChannelPastebin),
		}
		sum := Aggregate(scores)
		assert.Equal(t, MaxScore, sum.MaxESS)
		assert.InDelta(t, 6.63, sum.AvgESS, 1e-9)
		assert.Equal(t, LabelCritical, sum.Label)
		assert.Equal(t, "#ff2d2d", sum.Color)
		assert.Equal(t, 3, sum.TotalSources)
		assert.Equal(t, []scan.Category{scan.CategoryAadhaar, scan.CategoryEmail, scan.CategoryPAN, scan.CategoryPhone}, sum.AllTypes)
	})
}

func TestLabelFor(t *testing.T) {
	tests := []struct {
		score float64
		label Label
		color string
	}{
		{10, LabelCritical, "#ff2d2d"},
		{9.0, LabelCritical, "#ff2d2d"},
		{8.99, LabelHigh, "#ff6b00"},
		{7.0, LabelHigh, "#ff6b00"},
		{5.0, LabelMedium, "#ffc107"},
		{2.5, LabelLow, "#4fc3f7"},
		{2.49, LabelInfo, "#aaaaaa"},
		{0, LabelInfo, "#aaaaaa"},
	}

	for _, tt := range tests {
		label, color := LabelFor(tt.score)
		assert.Equal(t, tt.label, label, "score %v", tt.score)
		assert.Equal(t, tt.color, color, "score %v", tt.score)
	}
}
