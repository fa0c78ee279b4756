package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
)

// envVarPattern matches ${VAR} and ${VAR:-default} expressions.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{ID: "leakwatch", Environment: "development"},
		Scanning: ScanningConfig{
			Mode:      string(scan.ModeFast),
			ChunkSize: scan.DefaultChunkSize,
			Redaction: RedactionConfig{Mode: string(scan.RedactionMask)},
		},
		Semantic: SemanticConfig{
			Provider: "none",
			Timeout:  3 * time.Second,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				RecoveryTimeout:  30 * time.Second,
			},
			Cache: JudgeCacheConfig{MaxEntries: 10000, TTL: time.Hour},
		},
		Pipeline: PipelineConfig{Concurrency: 4},
		Attestation: AttestationConfig{
			TTL:       24 * time.Hour,
			ServiceID: "leakwatch",
		},
		Streaming: StreamingConfig{
			Kafka: KafkaConfig{
				Topics: KafkaTopicsConfig{
					Findings:  "leakwatch.findings",
					Confirmed: "leakwatch.findings.confirmed",
					Scores:    "leakwatch.scores",
					Alerts:    "leakwatch.alerts",
				},
			},
		},
		Server: ServerConfig{
			HTTP: HTTPServerConfig{Port: 9090, MetricsPath: "/metrics", HealthPath: "/healthz"},
			GRPC: GRPCServerConfig{Port: 50051},
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

// LoadConfig reads a YAML config file, performs environment variable
// substitution on the raw bytes, then unmarshals over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = substituteEnvVars(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadRulesDir reads all .yaml and .yml files from the given directory and
// parses each into a RuleFile struct.
func LoadRulesDir(dir string) ([]RuleFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading rules directory %s: %w", dir, err)
	}

	var rules []RuleFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		rf, err := LoadRuleFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rf)
	}

	return rules, nil
}

// LoadRuleFile reads one rule file.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file %s: %w", path, err)
	}

	data = substituteEnvVars(data)

	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rule file %s: %w", path, err)
	}
	return &rf, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns in content
// with the corresponding environment variable values. If a variable is not
// set and no default is provided, the expression is replaced with an empty
// string.
func substituteEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		groups := envVarPattern.FindSubmatch(match)
		if groups == nil {
			return match
		}

		varName := string(groups[1])
		hasDefault := len(groups) > 2 && groups[2] != nil

		val, ok := os.LookupEnv(varName)
		if !ok || val == "" {
			if hasDefault {
				return groups[2]
			}
			return []byte("")
		}
		return []byte(val)
	})
}

// Validate checks field ranges and enums with struct tags, then the rules
// that span several fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return err
	}

	switch cfg.Semantic.Provider {
	case "remote":
		if cfg.Semantic.Endpoint == "" {
			return fmt.Errorf("semantic.endpoint is required for the remote provider")
		}
	case "openai":
		if cfg.Semantic.APIKey == "" && cfg.Semantic.Endpoint == "" {
			return fmt.Errorf("semantic.api_key or semantic.endpoint is required for the openai provider")
		}
	}

	if cfg.Streaming.Enabled && len(cfg.Streaming.Kafka.Brokers) == 0 {
		return fmt.Errorf("streaming.kafka.brokers is required when streaming is enabled")
	}

	if cfg.Attestation.Enabled && cfg.Attestation.SigningKey == "" {
		return fmt.Errorf("attestation.signing_key is required when attestation is enabled")
	}

	if cfg.Actions.Alerting.Slack.Enabled && cfg.Actions.Alerting.Slack.WebhookURL == "" {
		return fmt.Errorf("actions.alerting.slack.webhook_url is required when slack is enabled")
	}
	if cfg.Actions.Alerting.Webhook.Enabled && cfg.Actions.Alerting.Webhook.URL == "" {
		return fmt.Errorf("actions.alerting.webhook.url is required when the webhook is enabled")
	}

	if _, err := cfg.Scanning.DisabledCategories(); err != nil {
		return err
	}
	if _, err := cfg.Scoring.Tables(); err != nil {
		return err
	}
	if _, err := scan.NewPrescreen(cfg.Scanning.Prescreen.SkipGlobs...); err != nil {
		return fmt.Errorf("scanning.prescreen.skip_globs: %w", err)
	}

	return nil
}

// fieldPath turns a validator namespace into a dotted lower-case path.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

// DisabledCategories parses the disabled pattern list.
func (s ScanningConfig) DisabledCategories() ([]scan.Category, error) {
	out := make([]scan.Category, 0, len(s.Patterns.Disabled))
	for _, name := range s.Patterns.Disabled {
		c, err := parseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("scanning.patterns.disabled: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Tables returns the default scoring tables with the configured overrides
// applied. Configured toxic rules are appended to the built-in ones.
func (s ScoringConfig) Tables() (score.Tables, error) {
	tables := score.DefaultTables().WithChannels(s.Channels)

	if len(s.Weights) > 0 {
		weights := make(map[scan.Category]float64, len(tables.Weights)+len(s.Weights))
		for c, w := range tables.Weights {
			weights[c] = w
		}
		for name, w := range s.Weights {
			c, err := parseCategory(name)
			if err != nil {
				return score.Tables{}, fmt.Errorf("scoring.weights: %w", err)
			}
			weights[c] = w
		}
		tables.Weights = weights
	}

	rules := append([]score.ToxicRule(nil), tables.ToxicRules...)
	for _, rc := range s.ToxicRules {
		rule := score.ToxicRule{Multiplier: rc.Multiplier, Label: rc.Label}
		for _, name := range rc.Categories {
			c, err := parseCategory(name)
			if err != nil {
				return score.Tables{}, fmt.Errorf("scoring.toxic_rules %q: %w", rc.Label, err)
			}
			rule.Categories = append(rule.Categories, c)
		}
		rules = append(rules, rule)
	}
	tables.ToxicRules = rules

	return tables, nil
}

// Matcher compiles the definition into a pattern matcher.
func (d PatternDefinition) Matcher() (scan.PatternMatcher, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("pattern definition without id")
	}
	c, err := parseCategory(d.Category)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", d.ID, err)
	}

	var v scan.Validator
	if d.Validate == nil || *d.Validate {
		v = scan.ValidatorFor(c)
	}

	name := d.Name
	if name == "" {
		name = d.ID
	}
	m, err := scan.NewRegexMatcher(d.ID, name, c, d.Regex, v)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: compiling regex: %w", d.ID, err)
	}
	return m, nil
}

// PatternMatchers compiles every pattern of the rule files.
func PatternMatchers(files []RuleFile) ([]scan.PatternMatcher, error) {
	var out []scan.PatternMatcher
	for _, rf := range files {
		for _, def := range rf.Patterns {
			m, err := def.Matcher()
			if err != nil {
				return nil, fmt.Errorf("rule file %q: %w", rf.Name, err)
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func parseCategory(name string) (scan.Category, error) {
	c := scan.Category(strings.ToUpper(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", name)
	}
	return c, nil
}
