// Package types provides records shared by the pipeline, action and attest
// packages. It breaks circular dependencies between them.
package types

import (
	"time"

	"github.com/Tributary-ai-services/leakwatch/pkg/score"
)

// Attestation represents a signed record of a completed scan
type Attestation struct {
	ID          string `json:"id"`
	ContentHash string `json:"content_hash"` // SHA-256 of scanned content
	Channel     string `json:"channel"`

	// Scan summary
	Mode         string            `json:"mode"` // effective mode; degraded deep scans attest as fast
	Clean        bool              `json:"clean"`
	FindingCount int               `json:"finding_count"`
	Categories   []string          `json:"categories"`
	Score        score.SourceScore `json:"score"`

	// Context
	ScannedAt time.Time `json:"scanned_at"`
	ScannedBy string    `json:"scanned_by"` // Service ID
	SourceID  string    `json:"source_id"`
	ExpiresAt time.Time `json:"expires_at"`

	// Signature
	Signature string `json:"signature"` // HMAC-SHA256
}

// ActionResult contains results of alert rule evaluation
type ActionResult struct {
	RulesMatched []string      `json:"rules_matched"`
	Actions      []ActionTaken `json:"actions"`
	Alerts       []AlertSent   `json:"alerts,omitempty"`
}

// ActionTaken describes an action that was executed
type ActionTaken struct {
	RuleID     string `json:"rule_id"`
	ActionType string `json:"action_type"` // "alert", "log"
	Success    bool   `json:"success"`
	Skipped    string `json:"skipped,omitempty"` // "cooldown", "rate_limited"
	Error      string `json:"error,omitempty"`
}

// AlertSent describes an alert that was sent
type AlertSent struct {
	RuleID    string    `json:"rule_id"`
	Channel   string    `json:"channel"` // "slack", "webhook", "stream"
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// ProcessMetrics contains performance information
type ProcessMetrics struct {
	TotalDuration  time.Duration `json:"total_duration"`
	ScanDuration   time.Duration `json:"scan_duration"`
	AttestDuration time.Duration `json:"attest_duration,omitempty"`
	ActionDuration time.Duration `json:"action_duration,omitempty"`
	StreamDuration time.Duration `json:"stream_duration,omitempty"`

	ContentSize        int  `json:"content_size"`
	FindingsCount      int  `json:"findings_count"`
	AttestationSkipped bool `json:"attestation_skipped"`
}
