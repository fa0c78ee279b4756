package scan

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
)

var (
	tracer      = otel.Tracer("leakwatch.scan")
	noJudgeOnce sync.Once
)

// defaultScanner implements the Scanner interface
type defaultScanner struct {
	registry      PatternRegistry
	judge         Judge
	locator       SentenceLocator
	names         NameFinder
	disambiguator *Disambiguator
	prescreen     *Prescreen
	chunkSize     int
	disabled      []Category
	logger        *slog.Logger

	classifier *Classifier
}

// NewScanner creates a scanner with the built-in patterns. Without
// WithJudge every scan runs in fast mode.
func NewScanner(opts ...Option) Scanner {
	s := &defaultScanner{
		registry:  NewDefaultRegistry(),
		locator:   RuleSentenceLocator{},
		names:     HeuristicNameFinder{},
		prescreen: &Prescreen{globs: append([]string(nil), DefaultSkipGlobs...)},
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.classifier = NewClassifier(s.judge, s.locator, s.logger)
	return s
}

// Scan implements Scanner
func (s *defaultScanner) Scan(ctx context.Context, text string, opts Options) (*Result, error) {
	startTime := time.Now()

	mode := opts.Mode
	if mode != ModeDeep {
		mode = ModeFast
	}

	ctx, span := tracer.Start(ctx, "scan.scan", trace.WithAttributes(
		attribute.String("scan.mode", string(mode)),
		attribute.Int("scan.content_length", len(text)),
		attribute.String("scan.source", opts.Source),
	))
	defer span.End()

	result := &Result{
		ID:            uuid.New().String(),
		Findings:      []Finding{},
		Mode:          mode,
		ContentLength: len(text),
		ScannedAt:     startTime,
	}

	if mode == ModeDeep && !s.classifier.HasJudge() {
		noJudgeOnce.Do(func() {
			s.logger.Warn("deep mode requested without a semantic judge, scanning in fast mode")
		})
		mode = ModeFast
		result.Mode = ModeFast
		result.Degraded = true
	}

	if err := ctx.Err(); err != nil {
		return nil, s.fail(span, mode, startTime, err)
	}

	if strings.TrimSpace(text) == "" {
		return s.finish(span, result, startTime, "ok"), nil
	}

	if reason := s.prescreen.Check(opts.Filename, text); reason != "" {
		result.Skipped = true
		result.SkipReason = reason
		s.logger.Debug("scan skipped", "source", opts.Source, "filename", opts.Filename, "reason", reason)
		return s.finish(span, result, startTime, "skipped"), nil
	}

	chunks := SplitChunks(text, s.chunkSize)
	result.Chunks = len(chunks)

	var merged []Finding
	for _, chunk := range chunks {
		findings, degraded, err := s.scanChunk(ctx, chunk.Text, mode)
		if err != nil {
			return nil, s.fail(span, mode, startTime, err)
		}
		result.Degraded = result.Degraded || degraded
		merged = append(merged, MergeChunkFindings(len(text), chunk, findings)...)
	}

	deduped := Deduplicate(merged)
	recordOverlapDrops(merged, deduped)
	if deduped != nil {
		result.Findings = deduped
	}

	for _, f := range result.Findings {
		metrics.RecordFinding(string(f.Category), string(f.Tier))
	}

	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	s.logger.Debug("scan completed",
		"scan_id", result.ID,
		"source", opts.Source,
		"mode", result.Mode,
		"findings", len(result.Findings),
		"chunks", result.Chunks,
		"degraded", result.Degraded,
	)
	span.SetAttributes(attribute.Int("scan.findings", len(result.Findings)))
	return s.finish(span, result, startTime, outcome), nil
}

// scanChunk runs matching, validation, classification and the optional
// fake-data pass over one window. Offsets are chunk-relative.
func (s *defaultScanner) scanChunk(ctx context.Context, text string, mode Mode) ([]Finding, bool, error) {
	var candidates []Candidate
	for _, matcher := range s.registry.GetEnabled(s.disabled) {
		for _, cand := range matcher.Match(text) {
			if !matcher.Validate(cand.Value, Window(text, cand.Span, ValidatorRadius)) {
				metrics.RecordDrop(string(cand.Category), DropValidator)
				continue
			}
			candidates = append(candidates, cand)
		}
	}

	var names []Candidate
	if mode == ModeDeep && s.names != nil && !s.isDisabled(CategoryPerson) {
		for _, n := range s.names.FindNames(text) {
			if IsCodeArtifact(n.Value) {
				metrics.RecordDrop(string(CategoryPerson), DropValidator)
				continue
			}
			names = append(names, n)
		}
		candidates = append(candidates, names...)
	}

	findings, degraded, err := s.classifier.Classify(ctx, text, candidates, names, mode)
	if err != nil {
		return nil, degraded, err
	}
	if s.disambiguator != nil {
		findings = s.disambiguator.Apply(ctx, text, findings)
	}
	return findings, degraded, nil
}

func (s *defaultScanner) isDisabled(c Category) bool {
	for _, d := range s.disabled {
		if d == c {
			return true
		}
	}
	return false
}

func (s *defaultScanner) finish(span trace.Span, result *Result, startTime time.Time, outcome string) *Result {
	result.Duration = time.Since(startTime)
	metrics.RecordScan(string(result.Mode), outcome, result.Duration)
	span.SetAttributes(attribute.String("scan.outcome", outcome))
	return result
}

func (s *defaultScanner) fail(span trace.Span, mode Mode, startTime time.Time, err error) error {
	span.RecordError(err)
	metrics.RecordScan(string(mode), "error", time.Since(startTime))
	return err
}

// recordOverlapDrops counts findings the deduplicator discarded.
func recordOverlapDrops(before, after []Finding) {
	if len(before) == len(after) {
		return
	}
	kept := make(map[string]bool, len(after))
	for _, f := range after {
		kept[f.ID] = true
	}
	for _, f := range before {
		if !kept[f.ID] {
			metrics.RecordDrop(string(f.Category), DropOverlap)
		}
	}
}

// Patterns implements Scanner
func (s *defaultScanner) Patterns() []PatternInfo {
	enabled := make(map[string]bool)
	for _, m := range s.registry.GetEnabled(s.disabled) {
		enabled[m.GetID()] = true
	}

	matchers := s.registry.GetAll()
	patterns := make([]PatternInfo, 0, len(matchers)+1)
	for _, m := range matchers {
		patterns = append(patterns, PatternInfo{
			ID:       m.GetID(),
			Name:     m.GetName(),
			Category: m.GetCategory(),
			Enabled:  enabled[m.GetID()],
		})
	}
	patterns = append(patterns, PatternInfo{
		ID:       "pii-person",
		Name:     CategoryPerson.DisplayName(),
		Category: CategoryPerson,
		Enabled:  s.names != nil && s.judge != nil && !s.isDisabled(CategoryPerson),
	})
	return patterns
}

// QuickScan performs a fast-mode scan with default settings
func QuickScan(text string) (*Result, error) {
	return NewScanner().Scan(context.Background(), text, Options{Mode: ModeFast})
}
