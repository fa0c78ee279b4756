package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
)

// repoRoot returns the absolute path to the repository root by walking up
// from the test file location until it finds go.mod.
func repoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repository root (go.mod)")
		}
		dir = parent
	}
}

// clearEnv blanks every variable referenced by configs/leakwatch.yaml
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LEAKWATCH_ENV", "LEAKWATCH_MODE", "LEAKWATCH_JUDGE", "LEAKWATCH_JUDGE_ENDPOINT",
		"OPENAI_MODEL", "OPENAI_API_KEY", "REDIS_ADDR", "REDIS_PASSWORD",
		"LEAKWATCH_SIGNING_KEY", "KAFKA_BROKER", "SLACK_WEBHOOK_URL", "ALERT_WEBHOOK_URL", "LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leakwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// -----------------------------------------------------------------------
// TestLoadConfig - Parse configs/leakwatch.yaml and verify key fields
// -----------------------------------------------------------------------

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	root := repoRoot(t)
	cfgPath := filepath.Join(root, "configs", "leakwatch.yaml")

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig(%s): %v", cfgPath, err)
	}

	if cfg.Service.ID != "leakwatch" {
		t.Errorf("service.id = %q, want %q", cfg.Service.ID, "leakwatch")
	}
	if cfg.Service.Environment != "development" {
		t.Errorf("service.environment = %q, want %q", cfg.Service.Environment, "development")
	}

	if cfg.Scanning.Mode != "fast" {
		t.Errorf("scanning.mode = %q, want fast", cfg.Scanning.Mode)
	}
	if cfg.Scanning.ChunkSize != 300000 {
		t.Errorf("scanning.chunk_size = %d, want 300000", cfg.Scanning.ChunkSize)
	}
	if !cfg.Scanning.Disambiguation.Enabled {
		t.Error("scanning.disambiguation.enabled = false, want true")
	}
	if len(cfg.Scanning.Prescreen.SkipGlobs) != 2 {
		t.Errorf("scanning.prescreen.skip_globs has %d entries, want 2", len(cfg.Scanning.Prescreen.SkipGlobs))
	}

	if cfg.Semantic.Provider != "none" {
		t.Errorf("semantic.provider = %q, want none", cfg.Semantic.Provider)
	}
	if cfg.Semantic.Model != "gpt-4o-mini" {
		t.Errorf("semantic.model = %q, want gpt-4o-mini", cfg.Semantic.Model)
	}
	if cfg.Semantic.Timeout != 3*time.Second {
		t.Errorf("semantic.timeout = %v, want 3s", cfg.Semantic.Timeout)
	}
	if cfg.Semantic.Cache.TTL != time.Hour {
		t.Errorf("semantic.cache.ttl = %v, want 1h", cfg.Semantic.Cache.TTL)
	}

	if got := cfg.Scoring.Channels["telegram"]; got != 1.20 {
		t.Errorf("scoring.channels.telegram = %v, want 1.20", got)
	}

	if len(cfg.Streaming.Kafka.Brokers) != 1 || cfg.Streaming.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("streaming.kafka.brokers = %v, want [localhost:9092]", cfg.Streaming.Kafka.Brokers)
	}
	if cfg.Streaming.Kafka.Topics.Confirmed != "leakwatch.findings.confirmed" {
		t.Errorf("streaming.kafka.topics.confirmed = %q", cfg.Streaming.Kafka.Topics.Confirmed)
	}
	if cfg.Streaming.Kafka.Producer.FlushInterval != 500*time.Millisecond {
		t.Errorf("streaming.kafka.producer.flush_interval = %v, want 500ms", cfg.Streaming.Kafka.Producer.FlushInterval)
	}

	if cfg.Actions.RateLimit.MaxActions != 30 {
		t.Errorf("actions.rate_limit.max_actions = %d, want 30", cfg.Actions.RateLimit.MaxActions)
	}
	if cfg.Server.GRPC.Port != 50051 {
		t.Errorf("server.grpc.port = %d, want 50051", cfg.Server.GRPC.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v, want level info format json", cfg.Logging)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "service:\n  id: minimal\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Scanning.ChunkSize != scan.DefaultChunkSize {
		t.Errorf("scanning.chunk_size = %d, want default %d", cfg.Scanning.ChunkSize, scan.DefaultChunkSize)
	}
	if cfg.Semantic.Breaker.FailureThreshold != 5 {
		t.Errorf("semantic.breaker.failure_threshold = %d, want 5", cfg.Semantic.Breaker.FailureThreshold)
	}
	if cfg.Server.HTTP.MetricsPath != "/metrics" {
		t.Errorf("server.http.metrics_path = %q, want /metrics", cfg.Server.HTTP.MetricsPath)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// -----------------------------------------------------------------------
// TestSubstituteEnvVars
// -----------------------------------------------------------------------

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("LW_SET", "value")
	t.Setenv("LW_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "a: ${LW_SET}", "a: value"},
		{"set with default", "a: ${LW_SET:-other}", "a: value"},
		{"unset with default", "a: ${LW_UNSET_X:-fallback}", "a: fallback"},
		{"empty with default", "a: ${LW_EMPTY:-fallback}", "a: fallback"},
		{"unset without default", "a: ${LW_UNSET_X}", "a: "},
		{"default with colon", "a: ${LW_UNSET_X:-localhost:9092}", "a: localhost:9092"},
		{"no expression", "a: $LW_SET", "a: $LW_SET"},
		{"two expressions", "${LW_SET}-${LW_SET}", "value-value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(substituteEnvVars([]byte(tt.input)))
			if got != tt.want {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------
// TestValidate
// -----------------------------------------------------------------------

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"missing service id", func(c *Config) { c.Service.ID = "" }, "service.id"},
		{"bad mode", func(c *Config) { c.Scanning.Mode = "thorough" }, "scanning.mode"},
		{"negative chunk size", func(c *Config) { c.Scanning.ChunkSize = -1 }, "scanning.chunksize"},
		{"bad redaction", func(c *Config) { c.Scanning.Redaction.Mode = "tokenize" }, "scanning.redaction.mode"},
		{"bad provider", func(c *Config) { c.Semantic.Provider = "oracle" }, "semantic.provider"},
		{"remote without endpoint", func(c *Config) { c.Semantic.Provider = "remote" }, "semantic.endpoint"},
		{"openai without key", func(c *Config) { c.Semantic.Provider = "openai" }, "semantic.api_key"},
		{"openai with key", func(c *Config) {
			c.Semantic.Provider = "openai"
			c.Semantic.APIKey = "sk-test"
		}, ""},
		{"streaming without brokers", func(c *Config) { c.Streaming.Enabled = true }, "streaming.kafka.brokers"},
		{"attestation without key", func(c *Config) { c.Attestation.Enabled = true }, "attestation.signing_key"},
		{"slack without url", func(c *Config) { c.Actions.Alerting.Slack.Enabled = true }, "slack.webhook_url"},
		{"bad slack url", func(c *Config) { c.Actions.Alerting.Slack.WebhookURL = "not a url" }, "webhookurl"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"port out of range", func(c *Config) { c.Server.GRPC.Port = 70000 }, "server.grpc.port"},
		{"unknown disabled category", func(c *Config) { c.Scanning.Patterns.Disabled = []string{"NINJA"} }, "scanning.patterns.disabled"},
		{"lowercase disabled category", func(c *Config) { c.Scanning.Patterns.Disabled = []string{"upi"} }, ""},
		{"zero channel multiplier", func(c *Config) { c.Scoring.Channels = map[string]float64{"telegram": 0} }, "scoring.channels"},
		{"toxic rule with one category", func(c *Config) {
			c.Scoring.ToxicRules = []ToxicRuleConfig{{Categories: []string{"PAN"}, Multiplier: 1.5, Label: "x"}}
		}, "categories"},
		{"toxic rule with unknown category", func(c *Config) {
			c.Scoring.ToxicRules = []ToxicRuleConfig{{Categories: []string{"PAN", "NINJA"}, Multiplier: 1.5, Label: "x"}}
		}, "scoring.toxic_rules"},
		{"bad glob", func(c *Config) { c.Scanning.Prescreen.SkipGlobs = []string{"[unclosed"} }, "skip_globs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	if err := Validate(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

// -----------------------------------------------------------------------
// TestScoringTables
// -----------------------------------------------------------------------

func TestScoringTables(t *testing.T) {
	sc := ScoringConfig{
		Channels: map[string]float64{"Telegram": 1.2},
		Weights:  map[string]float64{"email": 4.0},
		ToxicRules: []ToxicRuleConfig{
			{Categories: []string{"EMAIL", "IFSC"}, Multiplier: 1.4, Label: "Email + IFSC"},
		},
	}

	tables, err := sc.Tables()
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if got := tables.ChannelMultiplier("telegram"); got != 1.2 {
		t.Errorf("telegram multiplier = %v, want 1.2", got)
	}
	if got := tables.ChannelMultiplier(score.ChannelGitHubPublic); got != 1.30 {
		t.Errorf("github_public multiplier = %v, want 1.30", got)
	}
	if got := tables.Weight(scan.CategoryEmail); got != 4.0 {
		t.Errorf("EMAIL weight = %v, want 4.0", got)
	}
	if got := tables.Weight(scan.CategoryAadhaar); got != 9.0 {
		t.Errorf("AADHAAR weight = %v, want 9.0", got)
	}
	if n := len(tables.ToxicRules); n != len(score.DefaultTables().ToxicRules)+1 {
		t.Errorf("toxic rules = %d, want defaults plus one", n)
	}

	s := score.NewScorer(tables).ScoreSource([]scan.Finding{
		{Category: scan.CategoryEmail, Confidence: 1},
		{Category: scan.CategoryIFSC, Confidence: 1},
	}, "telegram")
	if s.ToxicComboLabel != "Email + IFSC" {
		t.Errorf("toxic combo = %q, want Email + IFSC", s.ToxicComboLabel)
	}

	if def := score.DefaultTables(); def.Weight(scan.CategoryEmail) != 3.0 {
		t.Errorf("default tables were modified: EMAIL weight %v", def.Weight(scan.CategoryEmail))
	}
}

// -----------------------------------------------------------------------
// TestLoadRulesDir - Parse configs/rules and compile patterns
// -----------------------------------------------------------------------

func TestLoadRulesDir(t *testing.T) {
	root := repoRoot(t)
	rulesDir := filepath.Join(root, "configs", "rules")

	files, err := LoadRulesDir(rulesDir)
	if err != nil {
		t.Fatalf("LoadRulesDir(%s): %v", rulesDir, err)
	}
	if len(files) != 2 {
		t.Fatalf("loaded %d rule files, want 2", len(files))
	}

	var alerts []AlertDefinition
	for _, f := range files {
		alerts = append(alerts, f.Alerts...)
	}
	if len(alerts) != 3 {
		t.Fatalf("loaded %d alert rules, want 3", len(alerts))
	}
	for _, a := range alerts {
		if a.ID == "critical-exposure" && a.Cooldown != 10*time.Minute {
			t.Errorf("critical-exposure cooldown = %v, want 10m", a.Cooldown)
		}
	}

	matchers, err := PatternMatchers(files)
	if err != nil {
		t.Fatalf("PatternMatchers: %v", err)
	}
	if len(matchers) != 1 {
		t.Fatalf("compiled %d matchers, want 1", len(matchers))
	}

	m := matchers[0]
	if m.GetCategory() != scan.CategoryEmail {
		t.Errorf("category = %q, want EMAIL", m.GetCategory())
	}
	text := "reach me at rahul.k [at] gmail [dot] com today"
	got := m.Match(text)
	if len(got) != 1 || got[0].Value != "rahul.k [at] gmail [dot] com" {
		t.Errorf("Match(%q) = %+v", text, got)
	}
}

func TestPatternDefinitionMatcher(t *testing.T) {
	tests := []struct {
		name    string
		def     PatternDefinition
		wantErr bool
	}{
		{"valid", PatternDefinition{ID: "x", Category: "pan", Regex: `[A-Z]{5}\d{4}[A-Z]`}, false},
		{"missing id", PatternDefinition{Category: "PAN", Regex: `x`}, true},
		{"unknown category", PatternDefinition{ID: "x", Category: "NINJA", Regex: `x`}, true},
		{"bad regex", PatternDefinition{ID: "x", Category: "PAN", Regex: `(`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.def.Matcher()
			if (err != nil) != tt.wantErr {
				t.Errorf("Matcher() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	// Built-in validators apply unless disabled.
	m, err := PatternDefinition{ID: "pan-lower", Category: "PAN", Regex: `\b[A-Za-z]{5}\d{4}[A-Za-z]\b`}.Matcher()
	if err != nil {
		t.Fatalf("Matcher: %v", err)
	}
	if m.Validate("ABCQE1234F", "") {
		t.Error("expected PAN validator to reject holder letter Q")
	}
	off := false
	m, err = PatternDefinition{ID: "pan-raw", Category: "PAN", Regex: `x`, Validate: &off}.Matcher()
	if err != nil {
		t.Fatalf("Matcher: %v", err)
	}
	if !m.Validate("ABCQE1234F", "") {
		t.Error("expected no validator when validate is false")
	}
}
