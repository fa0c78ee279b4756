package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tributary-ai-services/leakwatch/pkg/action"
	"github.com/Tributary-ai-services/leakwatch/pkg/attest"
	"github.com/Tributary-ai-services/leakwatch/pkg/config"
	"github.com/Tributary-ai-services/leakwatch/pkg/pipeline"
	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
	"github.com/Tributary-ai-services/leakwatch/pkg/semantic"
	"github.com/Tributary-ai-services/leakwatch/pkg/stream"
)

// runtime holds the components built from a configuration and the
// functions releasing them.
type runtime struct {
	scanner scan.Scanner
	scorer  *score.Scorer
	closers []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildRuntime wires the scanner, its optional judge and the scorer.
func buildRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{}

	tables, err := cfg.Scoring.Tables()
	if err != nil {
		return nil, err
	}
	rt.scorer = score.NewScorer(tables)

	disabled, err := cfg.Scanning.DisabledCategories()
	if err != nil {
		return nil, err
	}

	registry := scan.NewDefaultRegistry()
	if cfg.Scanning.RulesDir != "" {
		files, err := config.LoadRulesDir(cfg.Scanning.RulesDir)
		if err != nil {
			return nil, err
		}
		matchers, err := config.PatternMatchers(files)
		if err != nil {
			return nil, err
		}
		for _, m := range matchers {
			registry.Register(m)
		}
		logger.Debug("custom patterns loaded", "dir", cfg.Scanning.RulesDir, "count", len(matchers))
	}

	prescreen, err := scan.NewPrescreen(cfg.Scanning.Prescreen.SkipGlobs...)
	if err != nil {
		return nil, fmt.Errorf("scanning.prescreen: %w", err)
	}

	opts := []scan.Option{
		scan.WithLogger(logger),
		scan.WithRegistry(registry),
		scan.WithChunkSize(cfg.Scanning.ChunkSize),
		scan.WithDisabledCategories(disabled...),
		scan.WithPrescreen(prescreen),
	}

	judge, closeJudge, err := semantic.New(semanticSettings(cfg.Semantic), logger)
	switch {
	case errors.Is(err, semantic.ErrNoJudge):
		judge = nil
	case err != nil:
		return nil, err
	default:
		opts = append(opts, scan.WithJudge(judge))
		rt.closers = append(rt.closers, closeJudge)
	}
	if cfg.Scanning.Disambiguation.Enabled {
		opts = append(opts, scan.WithDisambiguator(scan.NewDisambiguator(judge, logger)))
	}

	rt.scanner = scan.NewScanner(opts...)
	return rt, nil
}

func semanticSettings(c config.SemanticConfig) semantic.Settings {
	s := semantic.Settings{
		Provider: c.Provider,
		Model:    c.Model,
		Endpoint: c.Endpoint,
		APIKey:   c.APIKey,
		Guard: semantic.GuardConfig{
			Timeout:          c.Timeout,
			FailureThreshold: c.Breaker.FailureThreshold,
			SuccessThreshold: c.Breaker.SuccessThreshold,
			RecoveryTimeout:  c.Breaker.RecoveryTimeout,
		},
		Cache: semantic.CacheConfig{
			MaxEntries: c.Cache.MaxEntries,
			TTL:        c.Cache.TTL,
		},
		RedisAddr:     c.Cache.Redis.Addr,
		RedisPassword: c.Cache.Redis.Password,
		RedisDB:       c.Cache.Redis.DB,
	}
	if c.RateLimit.Enabled {
		s.Guard.RatePerSecond = c.RateLimit.PerSecond
		s.Guard.Burst = c.RateLimit.Burst
	}
	return s
}

// processorOverrides are command line settings applied over the
// configuration.
type processorOverrides struct {
	deep    bool
	publish bool
	threads int
}

// buildProcessor wires the pipeline with the attestor, streamer and alert
// engine enabled in the configuration.
func buildProcessor(cfg *config.Config, rt *runtime, logger *slog.Logger, o processorOverrides) (pipeline.Processor, error) {
	pc, err := pipeline.ConfigFromSettings(cfg)
	if err != nil {
		return nil, err
	}
	if o.deep {
		pc.Mode = scan.ModeDeep
	}
	if o.publish {
		pc.EnableStreaming = true
	}
	if o.threads > 0 {
		pc.Concurrency = o.threads
	}

	opts := []pipeline.ProcessorOption{
		pipeline.WithConfig(pc),
		pipeline.WithScorer(rt.scorer),
		pipeline.WithLogger(logger),
	}

	if pc.EnableAttestation {
		if cfg.Attestation.SigningKey == "" {
			return nil, fmt.Errorf("attestation.signing_key is required when attestation is enabled")
		}
		opts = append(opts, pipeline.WithAttestor(attest.NewAttestor([]byte(cfg.Attestation.SigningKey), &attest.AttestorConfig{
			ServiceID:     pc.ServiceID,
			DefaultTTL:    pc.AttestationTTL,
			EnableCaching: true,
		})))
	}

	var streamer stream.Streamer
	if pc.EnableStreaming {
		ks, err := stream.NewKafkaStreamer(streamerConfig(cfg.Streaming.Kafka, pc.ServiceID))
		if err != nil {
			return nil, err
		}
		go func() {
			for err := range ks.Errors() {
				logger.Warn("kafka delivery failed", "error", err)
			}
		}()
		streamer = ks
		opts = append(opts, pipeline.WithStreamer(ks))
	}

	if pc.EnableActions {
		engine, err := buildEngine(cfg.Actions, streamer, logger)
		if err != nil {
			if streamer != nil {
				_ = streamer.Close()
			}
			return nil, err
		}
		opts = append(opts, pipeline.WithActionEngine(engine))
	}

	return pipeline.NewProcessor(rt.scanner, opts...), nil
}

func buildEngine(c config.ActionsConfig, sink action.AlertSink, logger *slog.Logger) (action.Engine, error) {
	engineOpts := []action.Option{action.WithLogger(logger)}
	if sink != nil {
		engineOpts = append(engineOpts, action.WithAlertSink(sink))
	}
	engine := action.NewEngine(action.ConfigFromSettings(c), engineOpts...)

	if c.RulesFile == "" {
		return engine, nil
	}
	rf, err := config.LoadRuleFile(c.RulesFile)
	if err != nil {
		return nil, err
	}
	if err := engine.LoadRules(action.RulesFromConfig([]config.RuleFile{*rf})); err != nil {
		return nil, fmt.Errorf("loading alert rules from %s: %w", c.RulesFile, err)
	}
	return engine, nil
}

func streamerConfig(k config.KafkaConfig, clientID string) *stream.StreamerConfig {
	sc := stream.DefaultStreamerConfig()
	sc.ClientID = clientID
	if len(k.Brokers) > 0 {
		sc.Brokers = k.Brokers
	}
	if k.Topics.Findings != "" {
		sc.Topics.Findings = k.Topics.Findings
	}
	if k.Topics.Confirmed != "" {
		sc.Topics.Confirmed = k.Topics.Confirmed
	}
	if k.Topics.Scores != "" {
		sc.Topics.Scores = k.Topics.Scores
	}
	if k.Topics.Alerts != "" {
		sc.Topics.Alerts = k.Topics.Alerts
	}
	if k.Producer.BatchSize > 0 {
		sc.BatchSize = k.Producer.BatchSize
	}
	if k.Producer.FlushInterval > 0 {
		sc.FlushInterval = k.Producer.FlushInterval
	}
	if k.Producer.Compression != "" {
		sc.Compression = k.Producer.Compression
	}
	if k.Producer.RequiredAcks != "" {
		sc.RequiredAcks = k.Producer.RequiredAcks
	}
	return sc
}
