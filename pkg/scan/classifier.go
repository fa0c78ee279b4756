package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
)

// Classifier scores.
const (
	FastBaseRisk       = 0.65
	FastKeywordRisk    = 0.75
	NoSentenceRisk     = 0.65
	StructuralCardRisk = 0.87
	LowRiskVetoPeak    = 0.28
	LowRiskCeiling     = 0.52
	OwnershipBoost     = 0.10
	NearbyPersonBoost  = 0.07
)

const (
	reasonFast         = "fast regex match"
	reasonFastFallback = "fast regex match (semantic judge unavailable)"
	reasonCard         = "high-risk structural type"
	reasonNoSentence   = "no sentence context"
)

// Drop reasons reported to metrics and debug logs.
const (
	DropValidator      = "validator"
	DropMasked         = "masked"
	DropDummy          = "dummy"
	DropBelowThreshold = "below_threshold"
	DropOverlap        = "overlap"
	DropFake           = "fake"
)

var judgeFailureOnce sync.Once

// Classifier turns validated candidates into findings. It holds no state
// that changes between calls and is safe for concurrent use.
type Classifier struct {
	judge   Judge
	locator SentenceLocator
	logger  *slog.Logger
}

// NewClassifier creates a classifier. A nil judge restricts it to fast
// scoring; a nil locator means deep mode never sees a sentence.
func NewClassifier(judge Judge, locator SentenceLocator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		judge:   judge,
		locator: locator,
		logger:  logger,
	}
}

// HasJudge reports whether deep scoring is available.
func (c *Classifier) HasJudge() bool {
	return c.judge != nil
}

// Classify scores every candidate independently. names are the person
// spans used for the nearby-person boost. The returned flag is true when
// at least one deep judgment failed and fell back to fast scoring.
func (c *Classifier) Classify(ctx context.Context, text string, candidates []Candidate, names []Candidate, mode Mode) ([]Finding, bool, error) {
	findings := make([]Finding, 0, len(candidates))
	degraded := false

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, degraded, err
		}

		var (
			f      Finding
			kept   bool
			reason string
		)
		if mode == ModeDeep && c.judge != nil {
			var fellBack bool
			f, kept, reason, fellBack = c.deep(ctx, text, cand, names)
			degraded = degraded || fellBack
		} else {
			f, kept = c.fast(text, cand), true
		}

		if !kept {
			metrics.RecordDrop(string(cand.Category), reason)
			c.logger.Debug("candidate dropped",
				"category", cand.Category,
				"start", cand.Span.Start,
				"end", cand.Span.End,
				"reason", reason,
			)
			continue
		}
		findings = append(findings, f)
	}
	return findings, degraded, nil
}

// fast assigns the constant base, raised when a keyword is nearby.
func (c *Classifier) fast(text string, cand Candidate) Finding {
	conf := FastBaseRisk
	if HasKeyword(Window(text, cand.Span, FastRadius)) {
		conf = FastKeywordRisk
	}
	return newFinding(text, cand, conf, TierNone, reasonFast, nil)
}

// deep runs the sentence-level flow for one candidate.
func (c *Classifier) deep(ctx context.Context, text string, cand Candidate, names []Candidate) (Finding, bool, string, bool) {
	var sentence string
	if c.locator != nil {
		sentence = c.locator.Sentence(text, cand.Span)
	}
	scope := sentence
	if scope == "" {
		scope = Window(text, cand.Span, ValidatorRadius)
	}

	signals := AnalyzeContext(scope)
	if signals.Masked {
		return Finding{}, false, DropMasked, false
	}
	if signals.Dummy {
		return Finding{}, false, DropDummy, false
	}

	var (
		base   float64
		reason string
		dist   Distribution
	)
	switch {
	case cand.Category == CategoryCreditCard:
		base, reason = StructuralCardRisk, reasonCard
	case sentence == "":
		base, reason = NoSentenceRisk, reasonNoSentence
	default:
		d, err := c.judge.Classify(ctx, sentence, RiskLabels())
		if err != nil || len(d) == 0 {
			judgeFailureOnce.Do(func() {
				c.logger.Warn("semantic judge unavailable, falling back to fast scoring", "error", err)
			})
			f := c.fast(text, cand)
			f.Reason = reasonFastFallback
			return f, true, "", true
		}
		dist = d
		base, reason = judgedBase(d)
	}

	risk := ApplyKeywordFloor(base, signals.Keyword)
	if signals.Ownership {
		risk = math.Min(risk+OwnershipBoost, 1)
	}
	if personNearby(cand, names) {
		risk = math.Min(risk+NearbyPersonBoost, 1)
	}
	risk = round3(risk)

	tier := TierFor(risk)
	if tier == TierNone {
		return Finding{}, false, DropBelowThreshold, false
	}
	return newFinding(text, cand, risk, tier, reason, dist), true, "", false
}

// judgedBase derives base risk from a label distribution. Low-risk
// evidence above LowRiskVetoPeak caps the base at LowRiskCeiling.
func judgedBase(d Distribution) (float64, string) {
	base := d.Mass(HighRiskLabels)
	if d.Peak(LowRiskLabels) > LowRiskVetoPeak && base > LowRiskCeiling {
		base = LowRiskCeiling
	}
	return base, d.Top().Label
}

// personNearby reports a person name within EntityRadius bytes of the
// candidate, ignoring the candidate itself.
func personNearby(cand Candidate, names []Candidate) bool {
	lo := cand.Span.Start - EntityRadius
	hi := cand.Span.End + EntityRadius
	for _, n := range names {
		if n.Span.Overlaps(cand.Span) {
			continue
		}
		if n.Span.End > lo && n.Span.Start < hi {
			return true
		}
	}
	return false
}

func newFinding(text string, cand Candidate, conf float64, tier Tier, reason string, dist Distribution) Finding {
	return Finding{
		ID:           uuid.New().String(),
		Category:     cand.Category,
		RawValue:     cand.Value,
		MaskedValue:  Mask(cand.Value),
		ValueHash:    HashValue(cand.Value),
		Span:         cand.Span,
		Confidence:   conf,
		Tier:         tier,
		Risk:         RiskFor(cand.Category, tier),
		Reason:       reason,
		Snippet:      Snippet(text, cand.Span),
		Distribution: dist,
	}
}

// HashValue returns the hex SHA-256 of a raw value.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
