// Package action evaluates alert rules against scored sources and runs the
// resulting actions.
package action

import (
	"context"
	"time"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
	"github.com/Tributary-ai-services/leakwatch/pkg/stream"
	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

// Engine evaluates rules and executes actions for a scored source
type Engine interface {
	// Evaluate evaluates all rules against a source and returns actions to take
	Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error)

	// Execute executes the determined actions
	Execute(ctx context.Context, result *EvaluateResult) (*types.ActionResult, error)

	// LoadRules loads rules from configuration
	LoadRules(rules []Rule) error

	// Close releases resources
	Close() error
}

// EvaluateRequest contains inputs for rule evaluation
type EvaluateRequest struct {
	SourceID string
	Channel  string
	Location string
	Score    score.SourceScore
	Findings []scan.Finding
}

// EvaluateResult contains the actions to be executed
type EvaluateResult struct {
	Request      EvaluateRequest
	MatchedRules []MatchedRule
	Actions      []ActionToTake
	Suppressed   []SuppressedRule
}

// MatchedRule represents a rule that matched a source
type MatchedRule struct {
	Rule       *Rule
	FindingIDs []string
}

// SuppressedRule is a matching rule that did not fire.
type SuppressedRule struct {
	RuleID string
	Reason string // "cooldown", "rate_limited"
}

// ActionToTake represents an action that should be executed
type ActionToTake struct {
	Rule       *Rule
	Type       ActionType
	Config     map[string]any
	FindingIDs []string
}

// ActionType defines types of automated actions
type ActionType string

const (
	ActionAlert ActionType = "alert"
	ActionLog   ActionType = "log"
)

// Suppression reasons.
const (
	ReasonCooldown    = "cooldown"
	ReasonRateLimited = "rate_limited"
)

// Alert channels accepted in an alert action's "channels" config.
const (
	ChannelSlack   = "slack"
	ChannelWebhook = "webhook"
	ChannelStream  = "stream"
)

// Rule defines an alert rule
type Rule struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	Priority    int           `json:"priority" yaml:"priority"` // Lower = higher priority
	Conditions  []Condition   `json:"conditions" yaml:"conditions"`
	Actions     []Action      `json:"actions" yaml:"actions"`
	RateLimit   *RateLimit    `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Cooldown    time.Duration `json:"cooldown" yaml:"cooldown"` // per rule and source
}

// Condition defines a rule condition
type Condition struct {
	Field    string   `json:"field" yaml:"field"`       // "ess_label", "ess_score", "channel", "category", "tier", "risk", "confidence"
	Operator string   `json:"operator" yaml:"operator"` // "eq", "ne", "in", "contains", "gt", "gte", "lt", "lte"
	Value    any      `json:"value" yaml:"value"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"` // For "in" operator
}

// Action defines an action to take
type Action struct {
	Type   ActionType     `json:"type" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// RateLimit defines rate limiting for a rule
type RateLimit struct {
	Count  int           `json:"count" yaml:"count"`
	Window time.Duration `json:"window" yaml:"window"`
}

// Alert is the payload delivered to every alert channel.
type Alert struct {
	RuleID     string          `json:"rule_id"`
	RuleName   string          `json:"rule_name"`
	Priority   int             `json:"priority"`
	SourceID   string          `json:"source_id"`
	Channel    string          `json:"channel"`
	Location   string          `json:"location,omitempty"`
	Label      score.Label     `json:"label"`
	Color      string          `json:"color"`
	Score      float64         `json:"ess_score"`
	Categories []scan.Category `json:"categories"`
	FindingIDs []string        `json:"finding_ids,omitempty"`
	Message    string          `json:"message"`
}

// Alerter sends alerts to external systems
type Alerter interface {
	// SendSlack sends an alert to Slack
	SendSlack(ctx context.Context, alert SlackAlert) error

	// SendWebhook sends an alert to a webhook
	SendWebhook(ctx context.Context, alert WebhookAlert) error
}

// AlertSink receives alerts for the "stream" channel. stream.Streamer
// satisfies it.
type AlertSink interface {
	StreamAlert(ctx context.Context, event stream.AlertEvent) error
}

// SlackAlert represents a Slack alert
type SlackAlert struct {
	Channel string
	Title   string
	Message string
	Color   string
	Fields  map[string]string
}

// WebhookAlert represents a webhook alert
type WebhookAlert struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    any
}

// EngineConfig configures the action engine
type EngineConfig struct {
	Enabled bool          `json:"enabled"`
	Timeout time.Duration `json:"timeout"`

	// Rate limiting across all rules
	RateLimitEnabled bool          `json:"rate_limit_enabled"`
	RateLimitWindow  time.Duration `json:"rate_limit_window"`
	RateLimitMax     int           `json:"rate_limit_max"`

	// Alerting
	Alerting AlertingConfig `json:"alerting"`
}

// AlertingConfig configures alert destinations
type AlertingConfig struct {
	Slack   SlackConfig   `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

// SlackConfig configures Slack alerting
type SlackConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel"`
}

// WebhookConfig configures webhook alerting
type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Enabled:          true,
		Timeout:          10 * time.Second,
		RateLimitEnabled: true,
		RateLimitWindow:  time.Minute,
		RateLimitMax:     60,
	}
}
