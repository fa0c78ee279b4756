// Package stream publishes masked findings, source scores and alerts to
// message topics. Raw values never cross this boundary.
package stream

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
)

// Streamer publishes scan events
type Streamer interface {
	// Stream publishes findings to the routed topics
	Stream(ctx context.Context, findings []Finding) error

	// StreamScore publishes one source score
	StreamScore(ctx context.Context, event ScoreEvent) error

	// StreamAlert publishes a fired alert
	StreamAlert(ctx context.Context, event AlertEvent) error

	// Close flushes pending messages and closes the connection
	Close() error
}

// Event is a message published to a topic.
type Event interface {
	// Key groups the events of one source on the same partition.
	Key() string
}

// Origin identifies the scan and source that produced an event.
type Origin struct {
	ScanID   string
	SourceID string
	Channel  string
	Location string
	Mode     scan.Mode
}

// Finding represents a streaming finding event
type Finding struct {
	// Identifiers
	ID        string    `json:"id"`
	ScanID    string    `json:"scan_id"`
	Timestamp time.Time `json:"timestamp"`

	// Location
	SourceID string `json:"source_id"`
	Channel  string `json:"channel"`
	Location string `json:"location,omitempty"`
	Start    int    `json:"start"`
	End      int    `json:"end"`

	// Classification
	Category    scan.Category `json:"category"`
	Mode        scan.Mode     `json:"mode"`
	Tier        scan.Tier     `json:"severity_tier,omitempty"`
	Risk        scan.Risk     `json:"risk"`
	Confidence  float64       `json:"confidence"`
	Annotations []string      `json:"annotations,omitempty"`

	// Value (safely handled)
	MaskedValue string `json:"masked_value"`
	ValueHash   string `json:"value_hash"`
}

// Key implements Event.
func (f Finding) Key() string { return f.SourceID }

// ScoreEvent carries the exposure score of one source.
type ScoreEvent struct {
	ID        string            `json:"id"`
	ScanID    string            `json:"scan_id"`
	Timestamp time.Time         `json:"timestamp"`
	SourceID  string            `json:"source_id"`
	Channel   string            `json:"channel"`
	Location  string            `json:"location,omitempty"`
	Mode      scan.Mode         `json:"mode"`
	Degraded  bool              `json:"degraded"`
	Score     score.SourceScore `json:"score"`
}

// Key implements Event.
func (e ScoreEvent) Key() string { return e.SourceID }

// AlertEvent represents a fired alert rule
type AlertEvent struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	RuleID     string          `json:"rule_id"`
	RuleName   string          `json:"rule_name"`
	Priority   int             `json:"priority"`
	SourceID   string          `json:"source_id"`
	Channel    string          `json:"channel"`
	Location   string          `json:"location,omitempty"`
	Label      score.Label     `json:"label"`
	Score      float64         `json:"ess_score"`
	Categories []scan.Category `json:"categories"`
	Message    string          `json:"message"`
}

// Key implements Event.
func (e AlertEvent) Key() string { return e.SourceID }

// StreamerConfig holds configuration for the streamer
type StreamerConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ClientID      string        `yaml:"client_id"`
	Topics        Topics        `yaml:"topics"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Compression   string        `yaml:"compression"`   // none, gzip, snappy, lz4, zstd
	RequiredAcks  string        `yaml:"required_acks"` // none, local, all
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// Topics defines Kafka topic names
type Topics struct {
	Findings  string `yaml:"findings"`
	Confirmed string `yaml:"confirmed"`
	Scores    string `yaml:"scores"`
	Alerts    string `yaml:"alerts"`
}

// DefaultStreamerConfig returns default streamer configuration
func DefaultStreamerConfig() *StreamerConfig {
	return &StreamerConfig{
		Brokers:  []string{"localhost:9092"},
		ClientID: "leakwatch",
		Topics: Topics{
			Findings:  "leakwatch.findings",
			Confirmed: "leakwatch.findings.confirmed",
			Scores:    "leakwatch.scores",
			Alerts:    "leakwatch.alerts",
		},
		BatchSize:     100,
		FlushInterval: 100 * time.Millisecond,
		Compression:   "snappy",
		RequiredAcks:  "all",
		MaxRetries:    3,
		RetryBackoff:  100 * time.Millisecond,
	}
}

// ConvertFinding converts a scan finding to a streaming finding. Only the
// masked value and the value hash are carried over.
func ConvertFinding(f scan.Finding, origin Origin) Finding {
	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}
	return Finding{
		ID:          id,
		ScanID:      origin.ScanID,
		Timestamp:   time.Now().UTC(),
		SourceID:    origin.SourceID,
		Channel:     origin.Channel,
		Location:    origin.Location,
		Start:       f.Span.Start,
		End:         f.Span.End,
		Category:    f.Category,
		Mode:        origin.Mode,
		Tier:        f.Tier,
		Risk:        f.Risk,
		Confidence:  f.Confidence,
		Annotations: append([]string(nil), f.Annotations...),
		MaskedValue: f.MaskedValue,
		ValueHash:   f.ValueHash,
	}
}

// ConvertFindings converts every finding of a scan.
func ConvertFindings(findings []scan.Finding, origin Origin) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		out = append(out, ConvertFinding(f, origin))
	}
	return out
}

// NewScoreEvent builds the score event of one source.
func NewScoreEvent(origin Origin, degraded bool, s score.SourceScore) ScoreEvent {
	return ScoreEvent{
		ID:        uuid.NewString(),
		ScanID:    origin.ScanID,
		Timestamp: time.Now().UTC(),
		SourceID:  origin.SourceID,
		Channel:   origin.Channel,
		Location:  origin.Location,
		Mode:      origin.Mode,
		Degraded:  degraded,
		Score:     s,
	}
}
