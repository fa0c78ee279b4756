package action

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/leakwatch/pkg/config"
	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
	"github.com/Tributary-ai-services/leakwatch/pkg/stream"
	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

// globalLimitKey is the rate limiter key shared by all rules.
const globalLimitKey = "*"

// defaultEngine is the standard implementation of the Engine interface.
type defaultEngine struct {
	mu          sync.RWMutex
	rules       []Rule
	alerter     Alerter
	sink        AlertSink
	logger      *slog.Logger
	rateLimiter *rateLimiter
	cooldowns   map[string]time.Time // ruleID|sourceID -> last execution time
	config      *EngineConfig
	now         func() time.Time
}

// Option configures the engine.
type Option func(*defaultEngine)

// WithAlerter replaces the HTTP alerter.
func WithAlerter(a Alerter) Option {
	return func(e *defaultEngine) { e.alerter = a }
}

// WithAlertSink routes "stream" alerts to sink.
func WithAlertSink(sink AlertSink) Option {
	return func(e *defaultEngine) { e.sink = sink }
}

// WithLogger sets the logger used by the log action.
func WithLogger(l *slog.Logger) Option {
	return func(e *defaultEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a new action engine with the given configuration.
// Alerts go to the HTTP alerter built from config.Alerting unless
// WithAlerter is given.
func NewEngine(cfg *EngineConfig, opts ...Option) Engine {
	if cfg == nil {
		cfg = DefaultEngineConfig()
	}
	e := &defaultEngine{
		rules:       make([]Rule, 0),
		alerter:     NewHTTPAlerter(cfg.Alerting),
		logger:      slog.Default(),
		rateLimiter: newRateLimiter(),
		cooldowns:   make(map[string]time.Time),
		config:      cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadRules loads the given rules into the engine, replacing any existing rules.
// Rules are sorted by priority (ascending -- lower number = higher priority).
func (e *defaultEngine) LoadRules(rules []Rule) error {
	for _, r := range rules {
		if r.ID == "" {
			return fmt.Errorf("rule without id")
		}
		for _, cond := range r.Conditions {
			if err := validateCondition(cond); err != nil {
				return fmt.Errorf("rule %s: %w", r.ID, err)
			}
		}
		for _, a := range r.Actions {
			if a.Type != ActionAlert && a.Type != ActionLog {
				return fmt.Errorf("rule %s: unknown action type: %s", r.ID, a.Type)
			}
		}
	}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	e.mu.Lock()
	e.rules = sorted
	e.mu.Unlock()
	return nil
}

// Evaluate evaluates all enabled rules against the source in the request.
// Matching rules that are cooling down or rate limited are reported as
// suppressed and produce no actions.
func (e *defaultEngine) Evaluate(_ context.Context, req EvaluateRequest) (*EvaluateResult, error) {
	result := &EvaluateResult{
		Request:      req,
		MatchedRules: make([]MatchedRule, 0),
		Actions:      make([]ActionToTake, 0),
	}
	if !e.config.Enabled {
		return result, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Enabled {
			continue
		}

		matched, findingIDs := matchRule(rule, &req)
		if !matched {
			continue
		}

		if e.isInCooldown(rule, req.SourceID) {
			result.Suppressed = append(result.Suppressed, SuppressedRule{RuleID: rule.ID, Reason: ReasonCooldown})
			metrics.RecordAlert(rule.ID, "suppressed_"+ReasonCooldown)
			continue
		}
		if !e.allow(rule) {
			result.Suppressed = append(result.Suppressed, SuppressedRule{RuleID: rule.ID, Reason: ReasonRateLimited})
			metrics.RecordAlert(rule.ID, "suppressed_"+ReasonRateLimited)
			continue
		}

		result.MatchedRules = append(result.MatchedRules, MatchedRule{Rule: rule, FindingIDs: findingIDs})
		for _, action := range rule.Actions {
			result.Actions = append(result.Actions, ActionToTake{
				Rule:       rule,
				Type:       action.Type,
				Config:     action.Config,
				FindingIDs: findingIDs,
			})
		}
	}

	return result, nil
}

// allow applies the per-rule limit and then the global one.
func (e *defaultEngine) allow(rule *Rule) bool {
	if !e.config.RateLimitEnabled {
		return true
	}
	if rule.RateLimit != nil && !e.rateLimiter.Allow(rule.ID, rule.RateLimit.Count, rule.RateLimit.Window) {
		return false
	}
	return e.rateLimiter.Allow(globalLimitKey, e.config.RateLimitMax, e.config.RateLimitWindow)
}

// Execute executes the actions described in an EvaluateResult.
func (e *defaultEngine) Execute(ctx context.Context, result *EvaluateResult) (*types.ActionResult, error) {
	actionResult := &types.ActionResult{
		RulesMatched: make([]string, 0, len(result.MatchedRules)),
		Actions:      make([]types.ActionTaken, 0, len(result.Actions)),
		Alerts:       make([]types.AlertSent, 0),
	}
	for _, mr := range result.MatchedRules {
		actionResult.RulesMatched = append(actionResult.RulesMatched, mr.Rule.ID)
	}
	for _, s := range result.Suppressed {
		actionResult.Actions = append(actionResult.Actions, types.ActionTaken{RuleID: s.RuleID, Skipped: s.Reason})
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	req := &result.Request
	for _, action := range result.Actions {
		taken := types.ActionTaken{
			RuleID:     action.Rule.ID,
			ActionType: string(action.Type),
			Success:    true,
		}

		alert := buildAlert(action, req)
		switch action.Type {
		case ActionAlert:
			sent := e.executeAlert(ctx, action, alert)
			actionResult.Alerts = append(actionResult.Alerts, sent...)
			for _, s := range sent {
				if !s.Success {
					taken.Success = false
					taken.Error = s.Error
				}
			}
		case ActionLog:
			e.logger.Warn("alert rule matched",
				"rule", alert.RuleID,
				"source", alert.SourceID,
				"channel", alert.Channel,
				"ess_score", alert.Score,
				"label", alert.Label,
				"categories", alert.Categories,
			)
		default:
			taken.Success = false
			taken.Error = fmt.Sprintf("unknown action type: %s", action.Type)
		}

		outcome := "ok"
		if !taken.Success {
			outcome = "failed"
		}
		metrics.RecordAlert(action.Rule.ID, outcome)
		actionResult.Actions = append(actionResult.Actions, taken)
	}

	e.mu.Lock()
	for _, mr := range result.MatchedRules {
		e.cooldowns[cooldownKey(mr.Rule.ID, req.SourceID)] = e.now()
	}
	e.mu.Unlock()

	return actionResult, nil
}

// Close releases resources held by the engine.
func (e *defaultEngine) Close() error {
	return nil
}

// isInCooldown checks if a rule is cooling down for a source. Callers hold
// at least the read lock.
func (e *defaultEngine) isInCooldown(rule *Rule, sourceID string) bool {
	if rule.Cooldown <= 0 {
		return false
	}
	lastExec, ok := e.cooldowns[cooldownKey(rule.ID, sourceID)]
	if !ok {
		return false
	}
	return e.now().Sub(lastExec) < rule.Cooldown
}

func cooldownKey(ruleID, sourceID string) string {
	return ruleID + "|" + sourceID
}

// buildAlert renders the alert payload of an action.
func buildAlert(action ActionToTake, req *EvaluateRequest) Alert {
	s := req.Score
	_, color := score.LabelFor(s.Score)
	name := action.Rule.Name
	if name == "" {
		name = action.Rule.ID
	}

	msg := fmt.Sprintf("%s: ESS %.2f (%s) on %s", name, s.Score, s.Label, score.ParseChannel(req.Channel))
	if req.Location != "" {
		msg += " at " + req.Location
	}
	if len(s.CategoriesFound) > 0 {
		cats := make([]string, 0, len(s.CategoriesFound))
		for _, c := range s.CategoriesFound {
			cats = append(cats, string(c))
		}
		msg += " [" + strings.Join(cats, ", ") + "]"
	}

	return Alert{
		RuleID:     action.Rule.ID,
		RuleName:   name,
		Priority:   action.Rule.Priority,
		SourceID:   req.SourceID,
		Channel:    string(score.ParseChannel(req.Channel)),
		Location:   req.Location,
		Label:      s.Label,
		Color:      color,
		Score:      s.Score,
		Categories: s.CategoriesFound,
		FindingIDs: action.FindingIDs,
		Message:    msg,
	}
}

// executeAlert sends an alert to the channels named in the action config.
func (e *defaultEngine) executeAlert(ctx context.Context, action ActionToTake, alert Alert) []types.AlertSent {
	var sent []types.AlertSent

	for _, channel := range e.alertChannels(action.Config) {
		record := types.AlertSent{
			RuleID:    alert.RuleID,
			Channel:   channel,
			Timestamp: e.now(),
			Success:   true,
		}

		var err error
		switch channel {
		case ChannelSlack:
			err = e.alerter.SendSlack(ctx, SlackAlert{
				Title:   fmt.Sprintf("leakwatch alert [%s]", alert.Label),
				Message: alert.Message,
				Color:   alert.Color,
				Fields: map[string]string{
					"rule":      alert.RuleID,
					"source":    alert.SourceID,
					"channel":   alert.Channel,
					"ess_score": fmt.Sprintf("%.2f", alert.Score),
				},
			})
		case ChannelWebhook:
			url, _ := action.Config["url"].(string)
			err = e.alerter.SendWebhook(ctx, WebhookAlert{URL: url, Body: alert})
		case ChannelStream:
			if e.sink == nil {
				err = fmt.Errorf("no alert stream configured")
				break
			}
			err = e.sink.StreamAlert(ctx, stream.AlertEvent{
				ID:         uuid.NewString(),
				Timestamp:  record.Timestamp.UTC(),
				RuleID:     alert.RuleID,
				RuleName:   alert.RuleName,
				Priority:   alert.Priority,
				SourceID:   alert.SourceID,
				Channel:    alert.Channel,
				Location:   alert.Location,
				Label:      alert.Label,
				Score:      alert.Score,
				Categories: alert.Categories,
				Message:    alert.Message,
			})
		default:
			err = fmt.Errorf("unknown alert channel: %s", channel)
		}

		if err != nil {
			record.Success = false
			record.Error = err.Error()
		}
		sent = append(sent, record)
	}

	return sent
}

// alertChannels reads the "channels" list of an alert action. Without one,
// alerts go to every configured destination.
func (e *defaultEngine) alertChannels(cfg map[string]any) []string {
	if raw, ok := cfg["channels"]; ok {
		switch v := raw.(type) {
		case []any:
			channels := make([]string, 0, len(v))
			for _, ch := range v {
				if s, ok := ch.(string); ok {
					channels = append(channels, strings.ToLower(s))
				}
			}
			return channels
		case []string:
			return v
		case string:
			return []string{strings.ToLower(v)}
		}
	}

	var channels []string
	if e.config.Alerting.Slack.Enabled {
		channels = append(channels, ChannelSlack)
	}
	if e.config.Alerting.Webhook.Enabled {
		channels = append(channels, ChannelWebhook)
	}
	if e.sink != nil {
		channels = append(channels, ChannelStream)
	}
	return channels
}

// RulesFromConfig converts the alert definitions of rule files into rules.
func RulesFromConfig(files []config.RuleFile) []Rule {
	var rules []Rule
	for _, rf := range files {
		for _, def := range rf.Alerts {
			rule := Rule{
				ID:       def.ID,
				Name:     def.Name,
				Enabled:  def.Enabled,
				Priority: def.Priority,
				Cooldown: def.Cooldown,
			}
			for _, c := range def.Conditions {
				rule.Conditions = append(rule.Conditions, Condition{Field: c.Field, Operator: c.Operator, Value: c.Value})
			}
			for _, a := range def.Actions {
				rule.Actions = append(rule.Actions, Action{Type: ActionType(a.Type), Config: a.Config})
			}
			rules = append(rules, rule)
		}
	}
	return rules
}

// ConfigFromSettings builds the engine configuration from the actions section.
func ConfigFromSettings(c config.ActionsConfig) *EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.Enabled = c.Enabled
	cfg.RateLimitEnabled = c.RateLimit.Enabled
	if c.RateLimit.Window > 0 {
		cfg.RateLimitWindow = c.RateLimit.Window
	}
	if c.RateLimit.MaxActions > 0 {
		cfg.RateLimitMax = c.RateLimit.MaxActions
	}
	cfg.Alerting = AlertingConfig{
		Slack: SlackConfig{
			Enabled:    c.Alerting.Slack.Enabled,
			WebhookURL: c.Alerting.Slack.WebhookURL,
			Channel:    c.Alerting.Slack.Channel,
		},
		Webhook: WebhookConfig{
			Enabled: c.Alerting.Webhook.Enabled,
			URL:     c.Alerting.Webhook.URL,
		},
	}
	return cfg
}
