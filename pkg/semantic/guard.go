package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

var tracer = otel.Tracer("leakwatch.semantic")

// GuardConfig configures a Guard. Zero values select defaults; a zero
// RatePerSecond disables rate limiting.
type GuardConfig struct {
	Name             string
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
	RatePerSecond    float64
	Burst            int
}

// Guard wraps a judge with a hard timeout, a circuit breaker, a token
// bucket, metrics and a trace span. It never blocks waiting for budget: a
// call over the limit fails fast with ErrRateLimited.
type Guard struct {
	name    string
	judge   scan.Judge
	timeout time.Duration
	breaker *Breaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGuard wraps judge.
func NewGuard(judge scan.Judge, cfg GuardConfig, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "judge"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	g := &Guard{
		name:    cfg.Name,
		judge:   judge,
		timeout: cfg.Timeout,
		breaker: NewBreaker(cfg.Name, cfg.FailureThreshold, cfg.SuccessThreshold, cfg.RecoveryTimeout),
		logger:  logger.With("judge", cfg.Name),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return g
}

// Breaker returns the guard's circuit breaker.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Classify implements scan.Judge
func (g *Guard) Classify(ctx context.Context, text string, labels []string) (scan.Distribution, error) {
	ctx, span := tracer.Start(ctx, "semantic.classify", trace.WithAttributes(
		attribute.String("judge.name", g.name),
		attribute.Int("judge.labels", len(labels)),
		attribute.Int("judge.text_length", len(text)),
	))
	defer span.End()

	if !g.breaker.Allow() {
		return nil, g.reject(span, ErrCircuitOpen, "circuit_open")
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return nil, g.reject(span, ErrRateLimited, "rate_limited")
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	dist, err := g.judge.Classify(callCtx, text, labels)
	if err == nil && len(dist) == 0 {
		err = ErrEmptyDistribution
	}
	metrics.RecordJudgeCall(g.name, time.Since(start), err)

	if err != nil {
		// A caller that gave up is not the judge's fault.
		if ctx.Err() == nil {
			g.breaker.RecordFailure()
		}
		errorType := "error"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			errorType = "timeout"
		}
		metrics.RecordJudgeError(g.name, errorType)
		span.RecordError(err)
		span.SetStatus(codes.Error, errorType)
		g.logger.Debug("judge call failed", "error_type", errorType, "error", err)
		return nil, fmt.Errorf("judge %s: %w", g.name, err)
	}

	g.breaker.RecordSuccess()
	span.SetAttributes(attribute.String("judge.top_label", dist.Top().Label))
	return dist, nil
}

func (g *Guard) reject(span trace.Span, err error, errorType string) error {
	metrics.RecordJudgeError(g.name, errorType)
	span.RecordError(err)
	span.SetStatus(codes.Error, errorType)
	return err
}
