package scan

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// disclosureDistribution puts 0.75 of the mass on high-risk labels.
func disclosureDistribution() Distribution {
	return NewDistribution(map[string]float64{
		HighRiskLabels[0]:  0.40,
		HighRiskLabels[1]:  0.20,
		HighRiskLabels[2]:  0.15,
		AmbiguousLabels[0]: 0.10,
		LowRiskLabels[0]:   0.05,
		LowRiskLabels[1]:   0.05,
		LowRiskLabels[2]:   0.05,
	})
}

// fixedJudge returns the same distribution for every call and counts calls.
type fixedJudge struct {
	dist  Distribution
	err   error
	calls atomic.Int32
}

func (j *fixedJudge) Classify(_ context.Context, _ string, _ []string) (Distribution, error) {
	j.calls.Add(1)
	if j.err != nil {
		return nil, j.err
	}
	return j.dist, nil
}

func candidateIn(text, value string, category Category) Candidate {
	return Candidate{Category: category, Value: value, Span: spanOf(text, value)}
}

func TestClassifierFastMode(t *testing.T) {
	c := NewClassifier(nil, RuleSentenceLocator{}, nil)

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"no keyword", "reference 234123412346 attached", FastBaseRisk},
		{"keyword nearby", "aadhaar 234123412346 attached", FastKeywordRisk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := candidateIn(tt.text, "234123412346", CategoryAadhaar)
			findings, degraded, err := c.Classify(context.Background(), tt.text, []Candidate{cand}, nil, ModeFast)
			require.NoError(t, err)
			assert.False(t, degraded)
			require.Len(t, findings, 1)

			f := findings[0]
			assert.Equal(t, tt.want, f.Confidence)
			assert.Equal(t, TierNone, f.Tier)
			assert.Equal(t, RiskCritical, f.Risk)
			assert.Equal(t, "fast regex match", f.Reason)
			assert.Equal(t, "2341****2346", f.MaskedValue)
			assert.Equal(t, HashValue("234123412346"), f.ValueHash)
			assert.NotEmpty(t, f.ID)
		})
	}
}

func TestClassifierDeepOwnershipAndKeyword(t *testing.T) {
	judge := &fixedJudge{dist: disclosureDistribution()}
	c := NewClassifier(judge, RuleSentenceLocator{}, nil)

	text := "My Aadhaar is 234123412346"
	cand := candidateIn(text, "234123412346", CategoryAadhaar)

	findings, degraded, err := c.Classify(context.Background(), text, []Candidate{cand}, nil, ModeDeep)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, 0.85, f.Confidence)
	assert.Equal(t, TierConfirmedLeak, f.Tier)
	assert.Equal(t, RiskCritical, f.Risk)
	assert.Equal(t, HighRiskLabels[0], f.Reason)
	assert.NotEmpty(t, f.Distribution)
	assert.Equal(t, int32(1), judge.calls.Load())
}

func TestClassifierDeepLowRiskVeto(t *testing.T) {
	judge := &fixedJudge{dist: NewDistribution(map[string]float64{
		HighRiskLabels[0]: 0.60,
		HighRiskLabels[1]: 0.10,
		LowRiskLabels[2]:  0.30,
	})}
	c := NewClassifier(judge, RuleSentenceLocator{}, nil)

	text := "The reference 234123412346 appears in the table."
	cand := candidateIn(text, "234123412346", CategoryAadhaar)

	findings, _, err := c.Classify(context.Background(), text, []Candidate{cand}, nil, ModeDeep)
	require.NoError(t, err)
	assert.Empty(t, findings, "capped base 0.52 is below the reporting threshold")
}

func TestClassifierDeepVetoLiftedByKeyword(t *testing.T) {
	judge := &fixedJudge{dist: NewDistribution(map[string]float64{
		HighRiskLabels[0]: 0.60,
		LowRiskLabels[2]:  0.40,
	})}
	c := NewClassifier(judge, RuleSentenceLocator{}, nil)

	text := "The aadhaar 234123412346 appears in the table."
	cand := candidateIn(text, "234123412346", CategoryAadhaar)

	findings, _, err := c.Classify(context.Background(), text, []Candidate{cand}, nil, ModeDeep)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, KeywordFloor, findings[0].Confidence)
	assert.Equal(t, TierProbableLeak, findings[0].Tier)
	assert.Equal(t, RiskHigh, findings[0].Risk)
}

func TestClassifierDeepHardDrops(t *testing.T) {
	judge := &fixedJudge{dist: disclosureDistribution()}
	c := NewClassifier(judge, RuleSentenceLocator{}, nil)

	tests := []struct {
		name     string
		text     string
		value    string
		category Category
	}{
		{"masked", "My Aadhaar XXXX 234123412346 on file.", "234123412346", CategoryAadhaar},
		{"dummy", "Use this dummy PAN ABCPE1234F in the form.", "ABCPE1234F", CategoryPAN},
		{"dummy beats card bypass", "My card 4111111111111111 is a sample.", "4111111111111111", CategoryCreditCard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := candidateIn(tt.text, tt.value, tt.category)
			findings, _, err := c.Classify(context.Background(), tt.text, []Candidate{cand}, nil, ModeDeep)
			require.NoError(t, err)
			assert.Empty(t, findings)
		})
	}
	assert.Equal(t, int32(0), judge.calls.Load())
}

func TestClassifierDeepCardBypassesJudge(t *testing.T) {
	judge := &fixedJudge{dist: disclosureDistribution()}
	c := NewClassifier(judge, RuleSentenceLocator{}, nil)

	text := "My card number is 4111111111111111."
	cand := candidateIn(text, "4111111111111111", CategoryCreditCard)

	findings, _, err := c.Classify(context.Background(), text, []Candidate{cand}, nil, ModeDeep)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 0.97, findings[0].Confidence)
	assert.Equal(t, "high-risk structural type", findings[0].Reason)
	assert.Equal(t, TierConfirmedLeak, findings[0].Tier)
	assert.Equal(t, int32(0), judge.calls.Load())
}

func TestClassifierDeepWithoutSentence(t *testing.T) {
	judge := &fixedJudge{dist: disclosureDistribution()}
	c := NewClassifier(judge, nil, nil)

	text := "aadhaar 234123412346"
	cand := candidateIn(text, "234123412346", CategoryAadhaar)

	findings, _, err := c.Classify(context.Background(), text, []Candidate{cand}, nil, ModeDeep)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, KeywordFloor, findings[0].Confidence)
	assert.Equal(t, "no sentence context", findings[0].Reason)
	assert.Equal(t, int32(0), judge.calls.Load())
}

func TestClassifierDeepJudgeFailureFallsBack(t *testing.T) {
	judge := &fixedJudge{err: errors.New("model unavailable")}
	c := NewClassifier(judge, RuleSentenceLocator{}, nil)

	text := "Aadhaar: 234123412346"
	cand := candidateIn(text, "234123412346", CategoryAadhaar)

	findings, degraded, err := c.Classify(context.Background(), text, []Candidate{cand}, nil, ModeDeep)
	require.NoError(t, err)
	assert.True(t, degraded)
	require.Len(t, findings, 1)
	assert.Equal(t, FastKeywordRisk, findings[0].Confidence)
	assert.Equal(t, TierNone, findings[0].Tier)
	assert.Contains(t, findings[0].Reason, "fast regex match")
}

func TestClassifierNearbyPersonBoost(t *testing.T) {
	judge := &fixedJudge{dist: disclosureDistribution()}
	c := NewClassifier(judge, RuleSentenceLocator{}, nil)

	text := "Mr. Rahul Sharma shared 234123412346 today."
	cand := candidateIn(text, "234123412346", CategoryAadhaar)
	person := candidateIn(text, "Rahul Sharma", CategoryPerson)

	findings, _, err := c.Classify(context.Background(), text, []Candidate{cand, person}, []Candidate{person}, ModeDeep)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	byCategory := map[Category]Finding{}
	for _, f := range findings {
		byCategory[f.Category] = f
	}
	assert.Equal(t, 0.82, byCategory[CategoryAadhaar].Confidence)
	assert.Equal(t, TierConfirmedLeak, byCategory[CategoryAadhaar].Tier)
	assert.Equal(t, 0.75, byCategory[CategoryPerson].Confidence, "a name does not boost itself")
	assert.Equal(t, TierProbableLeak, byCategory[CategoryPerson].Tier)
}

func TestClassifierHonoursCancellation(t *testing.T) {
	c := NewClassifier(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	text := "234123412346"
	_, _, err := c.Classify(ctx, text, []Candidate{candidateIn(text, text, CategoryAadhaar)}, nil, ModeFast)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierConfirmedLeak, TierFor(0.82))
	assert.Equal(t, TierProbableLeak, TierFor(0.819))
	assert.Equal(t, TierProbableLeak, TierFor(0.58))
	assert.Equal(t, TierNone, TierFor(0.579))
}
