package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Tributary-ai-services/leakwatch/pkg/action"
	"github.com/Tributary-ai-services/leakwatch/pkg/attest"
	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
	"github.com/Tributary-ai-services/leakwatch/pkg/stream"
	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

var tracer = otel.Tracer("leakwatch.pipeline")

// defaultProcessor implements the Processor interface, orchestrating
// the scan -> score -> attest -> stream -> alert pipeline.
type defaultProcessor struct {
	scanner  scan.Scanner
	scorer   *score.Scorer
	attestor attest.Attestor
	engine   action.Engine
	streamer stream.Streamer
	logger   *slog.Logger
	config   *ProcessorConfig
}

// ProcessorOption is a functional option for configuring a defaultProcessor.
type ProcessorOption func(*defaultProcessor)

// WithScorer replaces the scorer built from the default tables.
func WithScorer(s *score.Scorer) ProcessorOption {
	return func(p *defaultProcessor) {
		if s != nil {
			p.scorer = s
		}
	}
}

// WithAttestor sets the attestor on the processor.
func WithAttestor(a attest.Attestor) ProcessorOption {
	return func(p *defaultProcessor) {
		p.attestor = a
	}
}

// WithActionEngine sets the action engine on the processor.
func WithActionEngine(e action.Engine) ProcessorOption {
	return func(p *defaultProcessor) {
		p.engine = e
	}
}

// WithStreamer sets the streamer on the processor.
func WithStreamer(s stream.Streamer) ProcessorOption {
	return func(p *defaultProcessor) {
		p.streamer = s
	}
}

// WithLogger sets the processor logger.
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *defaultProcessor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithConfig sets the processor configuration.
func WithConfig(cfg *ProcessorConfig) ProcessorOption {
	return func(p *defaultProcessor) {
		if cfg != nil {
			p.config = cfg
		}
	}
}

// NewProcessor creates a new processor with the given scanner and options.
// The scanner is required; all other components are optional.
func NewProcessor(scanner scan.Scanner, opts ...ProcessorOption) Processor {
	p := &defaultProcessor{
		scanner: scanner,
		scorer:  score.NewScorer(score.DefaultTables()),
		logger:  slog.Default(),
		config:  DefaultProcessorConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process performs the pipeline for one source. Only a scan failure is
// returned as an error; attestation, streaming and alerting failures are
// logged and leave the report intact.
func (p *defaultProcessor) Process(ctx context.Context, src Source) (*Report, error) {
	startTime := time.Now()
	channel := score.ParseChannel(src.Channel)

	ctx, span := tracer.Start(ctx, "pipeline.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("source.id", src.ID),
		attribute.String("source.channel", string(channel)),
		attribute.Int("source.size", len(src.Content)),
	)

	report := &Report{
		SourceID: src.ID,
		Channel:  string(channel),
		Location: src.Location,
		Metrics: types.ProcessMetrics{
			ContentSize: len(src.Content),
		},
	}

	if p.config.MaxContentSize > 0 && len(src.Content) > p.config.MaxContentSize {
		report.Skipped = true
		report.SkipReason = fmt.Sprintf("content exceeds %d bytes", p.config.MaxContentSize)
		report.Score = p.scorer.ScoreSource(nil, channel)
		report.Metrics.TotalDuration = time.Since(startTime)
		return report, nil
	}

	// Step 1: Reuse a valid attestation for unchanged content
	if att := p.lookupAttestation(ctx, src); att != nil {
		canSkip, reason := p.attestor.CanSkip(ctx, attest.SkipCheckRequest{
			Attestation: att,
			Content:     src.Content,
			Channel:     string(channel),
			Mode:        p.config.Mode,
		})
		if canSkip {
			report.Skipped = true
			report.SkipReason = reason
			report.Attestation = att
			report.Score = att.Score
			report.Metrics.AttestationSkipped = true
			report.Metrics.TotalDuration = time.Since(startTime)
			span.SetAttributes(attribute.Bool("attestation.skipped", true))
			return report, nil
		}
	}

	// Step 2: Scan content
	scanStart := time.Now()
	scanCtx, scanCancel := withTimeout(ctx, p.config.ScanTimeout)
	result, err := p.scanner.Scan(scanCtx, string(src.Content), scan.Options{
		Mode:     p.config.Mode,
		Filename: src.Filename,
		Source:   src.ID,
	})
	scanCancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, fmt.Errorf("scan %s: %w", src.ID, err)
	}

	report.Result = result
	report.Metrics.ScanDuration = time.Since(scanStart)
	report.Metrics.FindingsCount = len(result.Findings)

	// Step 3: Score the source
	report.Score = p.scorer.ScoreSource(result.Findings, channel)
	metrics.RecordSourceScore(string(channel), report.Score.Score)
	span.SetAttributes(
		attribute.Int("findings", len(result.Findings)),
		attribute.Float64("ess.score", report.Score.Score),
		attribute.String("ess.label", string(report.Score.Label)),
	)

	if result.Skipped {
		report.Skipped = true
		report.SkipReason = result.SkipReason
		report.Metrics.TotalDuration = time.Since(startTime)
		return report, nil
	}

	// Step 4: Create attestation if enabled
	if p.config.EnableAttestation && p.attestor != nil {
		attestStart := time.Now()
		att, err := p.attestor.Create(ctx, attest.CreateRequest{
			Content:  src.Content,
			SourceID: src.ID,
			Channel:  string(channel),
			Result:   result,
			Score:    report.Score,
			TTL:      p.config.AttestationTTL,
		})
		if err != nil {
			p.logger.Warn("attestation failed", "source", src.ID, "error", err)
		}
		report.Attestation = att
		report.Metrics.AttestDuration = time.Since(attestStart)
	}

	// Step 5: Publish masked findings and the source score
	if p.config.EnableStreaming && p.streamer != nil {
		streamStart := time.Now()
		p.publish(ctx, src, result, report.Score)
		report.Metrics.StreamDuration = time.Since(streamStart)
	}

	// Step 6: Evaluate alert rules
	if p.config.EnableActions && p.engine != nil && len(result.Findings) > 0 {
		actionStart := time.Now()
		report.ActionResult = p.runActions(ctx, src, result.Findings, report.Score)
		report.Metrics.ActionDuration = time.Since(actionStart)
	}

	report.Metrics.TotalDuration = time.Since(startTime)
	return report, nil
}

// lookupAttestation returns the cached attestation of src, if any.
func (p *defaultProcessor) lookupAttestation(ctx context.Context, src Source) *types.Attestation {
	if !p.config.HonorAttestations || p.attestor == nil {
		return nil
	}
	att, err := p.attestor.Lookup(ctx, src.Content, src.Channel)
	if err != nil {
		p.logger.Debug("attestation lookup failed", "source", src.ID, "error", err)
		return nil
	}
	return att
}

func (p *defaultProcessor) publish(ctx context.Context, src Source, result *scan.Result, s score.SourceScore) {
	streamCtx, cancel := withTimeout(ctx, p.config.StreamTimeout)
	defer cancel()

	origin := stream.Origin{
		ScanID:   result.ID,
		SourceID: src.ID,
		Channel:  string(s.Channel),
		Location: src.Location,
		Mode:     result.Mode,
	}
	if len(result.Findings) > 0 {
		if err := p.streamer.Stream(streamCtx, stream.ConvertFindings(result.Findings, origin)); err != nil {
			p.logger.Warn("streaming findings failed", "source", src.ID, "error", err)
		}
	}
	if err := p.streamer.StreamScore(streamCtx, stream.NewScoreEvent(origin, result.Degraded, s)); err != nil {
		p.logger.Warn("streaming score failed", "source", src.ID, "error", err)
	}
}

func (p *defaultProcessor) runActions(ctx context.Context, src Source, findings []scan.Finding, s score.SourceScore) *types.ActionResult {
	actionCtx, cancel := withTimeout(ctx, p.config.ActionTimeout)
	defer cancel()

	evalResult, err := p.engine.Evaluate(actionCtx, action.EvaluateRequest{
		SourceID: src.ID,
		Channel:  src.Channel,
		Location: src.Location,
		Score:    s,
		Findings: findings,
	})
	if err != nil {
		p.logger.Warn("alert evaluation failed", "source", src.ID, "error", err)
		return nil
	}
	execResult, err := p.engine.Execute(actionCtx, evalResult)
	if err != nil {
		p.logger.Warn("alert execution failed", "source", src.ID, "error", err)
		return nil
	}
	return execResult
}

// ProcessBatch processes sources with bounded concurrency. A source that
// fails is recorded in Failures and does not stop the others. The returned
// error is non-nil only when ctx ends before the batch completes; the
// partial report is still returned.
func (p *defaultProcessor) ProcessBatch(ctx context.Context, sources []Source) (*BatchReport, error) {
	startTime := time.Now()

	ctx, span := tracer.Start(ctx, "pipeline.ProcessBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(sources)))

	reports := make([]*Report, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	limit := p.config.Concurrency
	if limit <= 0 {
		limit = len(sources)
	}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			reports[i], errs[i] = p.Process(gctx, sources[i])
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchReport{Reports: make([]*Report, 0, len(sources))}
	scores := make([]score.SourceScore, 0, len(sources))
	for i, r := range reports {
		if errs[i] != nil {
			batch.Failures = append(batch.Failures, SourceFailure{SourceID: sources[i].ID, Error: errs[i].Error()})
			continue
		}
		batch.Reports = append(batch.Reports, r)
		scores = append(scores, r.Score)
	}

	batch.Summary = p.scorer.Aggregate(scores)
	batch.Unique, batch.Counts = dedupeAcrossSources(batch.Reports)
	batch.Duration = time.Since(startTime)

	span.SetAttributes(
		attribute.Int("batch.failures", len(batch.Failures)),
		attribute.Float64("ess.max", batch.Summary.MaxESS),
	)
	return batch, ctx.Err()
}

// dedupeAcrossSources collapses findings that expose the same value in the
// same category. Reports are walked in order so the result is stable.
func dedupeAcrossSources(reports []*Report) ([]UniqueFinding, RiskCounts) {
	unique := make([]UniqueFinding, 0)
	index := make(map[string]int)

	for _, r := range reports {
		for _, f := range r.Findings() {
			key := string(f.Category) + ":" + f.ValueHash
			if i, ok := index[key]; ok {
				u := &unique[i]
				u.Occurrences++
				if u.Sources[len(u.Sources)-1] != r.SourceID {
					u.Sources = append(u.Sources, r.SourceID)
				}
				continue
			}
			index[key] = len(unique)
			unique = append(unique, UniqueFinding{
				Category:    f.Category,
				ValueHash:   f.ValueHash,
				MaskedValue: f.MaskedValue,
				Tier:        f.Tier,
				Risk:        f.Risk,
				Confidence:  f.Confidence,
				SourceID:    r.SourceID,
				Location:    r.Location,
				Occurrences: 1,
				Sources:     []string{r.SourceID},
			})
		}
	}

	counts := RiskCounts{Total: len(unique)}
	for _, u := range unique {
		switch u.Risk {
		case scan.RiskCritical:
			counts.Critical++
		case scan.RiskHigh:
			counts.High++
		case scan.RiskMedium:
			counts.Medium++
		}
	}
	return unique, counts
}

// Verify verifies an attestation is valid.
func (p *defaultProcessor) Verify(ctx context.Context, attestation *types.Attestation) error {
	if p.attestor == nil {
		return fmt.Errorf("no attestor configured")
	}
	return p.attestor.Verify(ctx, attestation)
}

// Close releases resources held by the processor's sub-components.
func (p *defaultProcessor) Close() error {
	var errs []error
	if p.engine != nil {
		if err := p.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("engine close: %w", err))
		}
	}
	if p.streamer != nil {
		if err := p.streamer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("streamer close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
