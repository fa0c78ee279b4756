// Package config provides configuration loading and validation for
// leakwatch. It supports YAML configuration files with environment variable
// substitution.
package config

import "time"

// Config is the top-level configuration structure mirroring leakwatch.yaml.
type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	Scanning    ScanningConfig    `yaml:"scanning"`
	Semantic    SemanticConfig    `yaml:"semantic"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Attestation AttestationConfig `yaml:"attestation"`
	Streaming   StreamingConfig   `yaml:"streaming"`
	Actions     ActionsConfig     `yaml:"actions"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServiceConfig holds service identification metadata.
type ServiceConfig struct {
	ID          string `yaml:"id" validate:"required"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ScanningConfig holds scanning engine settings.
type ScanningConfig struct {
	Mode           string          `yaml:"mode" validate:"omitempty,oneof=fast deep"`
	ChunkSize      int             `yaml:"chunk_size" validate:"gte=0"`
	MaxContentSize int             `yaml:"max_content_size" validate:"gte=0"`
	Timeout        time.Duration   `yaml:"timeout" validate:"gte=0"`
	RulesDir       string          `yaml:"rules_dir"`
	Prescreen      PrescreenConfig `yaml:"prescreen"`
	Patterns       PatternsConfig  `yaml:"patterns"`
	Redaction      RedactionConfig `yaml:"redaction"`
	Disambiguation DisambigConfig  `yaml:"disambiguation"`
}

// PrescreenConfig holds the skip rules applied before matching.
type PrescreenConfig struct {
	SkipGlobs []string `yaml:"skip_globs"`
}

// PatternsConfig toggles built-in patterns.
type PatternsConfig struct {
	Disabled []string `yaml:"disabled"`
}

// RedactionConfig holds redaction/masking settings.
type RedactionConfig struct {
	Mode string `yaml:"mode" validate:"omitempty,oneof=mask replace hash"`
}

// DisambigConfig enables the fake-data pass.
type DisambigConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SemanticConfig holds the deep-mode judge settings.
type SemanticConfig struct {
	Provider  string           `yaml:"provider" validate:"omitempty,oneof=none openai remote"`
	Model     string           `yaml:"model"`
	Endpoint  string           `yaml:"endpoint"`
	APIKey    string           `yaml:"api_key"`
	Timeout   time.Duration    `yaml:"timeout" validate:"gte=0"`
	Breaker   BreakerConfig    `yaml:"breaker"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Cache     JudgeCacheConfig `yaml:"cache"`
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" validate:"gte=0"`
	SuccessThreshold int           `yaml:"success_threshold" validate:"gte=0"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" validate:"gte=0"`
}

// RateLimitConfig holds token-bucket settings.
type RateLimitConfig struct {
	Enabled   bool    `yaml:"enabled"`
	PerSecond float64 `yaml:"per_second" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

// JudgeCacheConfig holds judgment cache settings.
type JudgeCacheConfig struct {
	MaxEntries int64            `yaml:"max_entries" validate:"gte=0"`
	TTL        time.Duration    `yaml:"ttl" validate:"gte=0"`
	Redis      RedisCacheConfig `yaml:"redis"`
}

// RedisCacheConfig holds Redis connection settings.
type RedisCacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// ScoringConfig overrides the built-in ESS tables.
type ScoringConfig struct {
	Channels   map[string]float64 `yaml:"channels" validate:"dive,gt=0"`
	Weights    map[string]float64 `yaml:"weights" validate:"dive,gte=0"`
	ToxicRules []ToxicRuleConfig  `yaml:"toxic_rules" validate:"dive"`
}

// ToxicRuleConfig is an additional toxic combination.
type ToxicRuleConfig struct {
	Categories []string `yaml:"categories" validate:"min=2"`
	Multiplier float64  `yaml:"multiplier" validate:"gte=1"`
	Label      string   `yaml:"label" validate:"required"`
}

// PipelineConfig holds batch processing settings.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" validate:"gte=0"`
}

// AttestationConfig holds attestation/deduplication settings.
type AttestationConfig struct {
	Enabled    bool          `yaml:"enabled"`
	SigningKey string        `yaml:"signing_key"`
	TTL        time.Duration `yaml:"ttl" validate:"gte=0"`
	ServiceID  string        `yaml:"service_id"`
}

// StreamingConfig holds Kafka streaming settings.
type StreamingConfig struct {
	Enabled bool        `yaml:"enabled"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds Kafka connection and producer settings.
type KafkaConfig struct {
	Brokers  []string            `yaml:"brokers"`
	Topics   KafkaTopicsConfig   `yaml:"topics"`
	Producer KafkaProducerConfig `yaml:"producer"`
}

// KafkaTopicsConfig maps topic names to Kafka topic strings.
type KafkaTopicsConfig struct {
	Findings  string `yaml:"findings"`
	Confirmed string `yaml:"confirmed"`
	Scores    string `yaml:"scores"`
	Alerts    string `yaml:"alerts"`
}

// KafkaProducerConfig holds Kafka producer settings.
type KafkaProducerConfig struct {
	BatchSize     int           `yaml:"batch_size" validate:"gte=0"`
	FlushInterval time.Duration `yaml:"flush_interval" validate:"gte=0"`
	Compression   string        `yaml:"compression" validate:"omitempty,oneof=none gzip snappy lz4 zstd"`
	RequiredAcks  string        `yaml:"required_acks" validate:"omitempty,oneof=none local all"`
}

// ActionsConfig holds alert engine settings.
type ActionsConfig struct {
	Enabled   bool                  `yaml:"enabled"`
	RulesFile string                `yaml:"rules_file"`
	RateLimit ActionRateLimitConfig `yaml:"rate_limit"`
	Alerting  AlertingConfig        `yaml:"alerting"`
}

// ActionRateLimitConfig holds rate limiting settings for the alert engine.
type ActionRateLimitConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Window     time.Duration `yaml:"window" validate:"gte=0"`
	MaxActions int           `yaml:"max_actions" validate:"gte=0"`
}

// AlertingConfig holds alerting integration settings.
type AlertingConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig holds Slack alerting settings.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
	Channel    string `yaml:"channel"`
	Enabled    bool   `yaml:"enabled"`
}

// WebhookConfig holds generic webhook alerting settings.
type WebhookConfig struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Enabled bool   `yaml:"enabled"`
}

// ServerConfig holds HTTP/gRPC server settings.
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http"`
	GRPC GRPCServerConfig `yaml:"grpc"`
}

// HTTPServerConfig holds the metrics and health listener settings.
type HTTPServerConfig struct {
	Port         int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
	MetricsPath  string        `yaml:"metrics_path"`
	HealthPath   string        `yaml:"health_path"`
}

// GRPCServerConfig holds gRPC server settings.
type GRPCServerConfig struct {
	Port           int `yaml:"port" validate:"gte=0,lte=65535"`
	MaxRecvMsgSize int `yaml:"max_recv_msg_size" validate:"gte=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
	Output string `yaml:"output" validate:"omitempty,oneof=stdout stderr"`
}

// RuleFile represents a parsed YAML rule file from configs/rules/.
type RuleFile struct {
	Version     string              `yaml:"version"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Patterns    []PatternDefinition `yaml:"patterns,omitempty"`
	Alerts      []AlertDefinition   `yaml:"alerts,omitempty"`
}

// PatternDefinition is an additional detection pattern. Category must be
// one of the scan categories; matches are checked with the category's
// built-in validator unless Validate is false.
type PatternDefinition struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Regex       string `yaml:"regex"`
	Validate    *bool  `yaml:"validate,omitempty"`
}

// AlertDefinition is an alert rule in a rule file.
type AlertDefinition struct {
	ID         string                `yaml:"id"`
	Name       string                `yaml:"name"`
	Enabled    bool                  `yaml:"enabled"`
	Priority   int                   `yaml:"priority"`
	Conditions []ConditionDefinition `yaml:"conditions"`
	Actions    []ActionDefinition    `yaml:"actions"`
	Cooldown   time.Duration         `yaml:"cooldown,omitempty"`
}

// ConditionDefinition is one alert condition.
type ConditionDefinition struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

// ActionDefinition is one alert action.
type ActionDefinition struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config,omitempty"`
}
