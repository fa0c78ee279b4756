// Package pipeline orchestrates the per-source leak scanning workflow.
package pipeline

import (
	"context"
	"time"

	"github.com/Tributary-ai-services/leakwatch/pkg/config"
	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

// Processor is the main entry point for source processing
type Processor interface {
	// Process performs the full pipeline for one source:
	// attestation check -> scan -> score -> attest -> stream -> alert
	Process(ctx context.Context, src Source) (*Report, error)

	// ProcessBatch processes sources concurrently and aggregates the results
	ProcessBatch(ctx context.Context, sources []Source) (*BatchReport, error)

	// Verify verifies an attestation is valid
	Verify(ctx context.Context, attestation *types.Attestation) error

	// Close releases resources
	Close() error
}

// Source is one piece of published content
type Source struct {
	ID       string `json:"id"`
	Channel  string `json:"channel"`            // "github_public", "pastebin", ...
	Location string `json:"location,omitempty"` // URL or path
	Filename string `json:"filename,omitempty"` // used by the pre-screen
	Content  []byte `json:"-"`
}

// Report contains the output of processing one source
type Report struct {
	SourceID string `json:"source_id"`
	Channel  string `json:"channel"`
	Location string `json:"location,omitempty"`

	// Skip information
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`

	// Scan results; nil when an attestation allowed the scan to be skipped
	Result *scan.Result `json:"result,omitempty"`

	Score score.SourceScore `json:"score"`

	// Attestation for later sweeps
	Attestation *types.Attestation `json:"attestation,omitempty"`

	// Alert results
	ActionResult *types.ActionResult `json:"action_result,omitempty"`

	// Performance metrics
	Metrics types.ProcessMetrics `json:"metrics"`
}

// Findings returns the findings of the report, or nil for skipped sources.
func (r *Report) Findings() []scan.Finding {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.Findings
}

// BatchReport contains the output of a batch
type BatchReport struct {
	Reports  []*Report       `json:"reports"`
	Failures []SourceFailure `json:"failures,omitempty"`
	Summary  score.Summary   `json:"summary"`

	// Findings deduplicated across sources by category and value hash
	Unique []UniqueFinding `json:"unique_findings"`
	Counts RiskCounts      `json:"counts"`

	Duration time.Duration `json:"duration"`
}

// SourceFailure records a source that could not be processed
type SourceFailure struct {
	SourceID string `json:"source_id"`
	Error    string `json:"error"`
}

// UniqueFinding is one distinct exposed value. The first occurrence in
// source order is kept; later occurrences only add to the counters.
type UniqueFinding struct {
	Category    scan.Category `json:"category"`
	ValueHash   string        `json:"value_hash"`
	MaskedValue string        `json:"masked_value"`
	Tier        scan.Tier     `json:"severity_tier,omitempty"`
	Risk        scan.Risk     `json:"risk"`
	Confidence  float64       `json:"confidence"`
	SourceID    string        `json:"source_id"`
	Location    string        `json:"location,omitempty"`
	Occurrences int           `json:"occurrences"`
	Sources     []string      `json:"sources"`
}

// RiskCounts counts unique findings by risk
type RiskCounts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
}

// ProcessorConfig configures the processor
type ProcessorConfig struct {
	// Service identification
	ServiceID string `json:"service_id"`

	// Scan mode requested for every source
	Mode scan.Mode `json:"mode"`

	// Feature toggles
	EnableAttestation bool `json:"enable_attestation"`
	EnableStreaming   bool `json:"enable_streaming"`
	EnableActions     bool `json:"enable_actions"`
	HonorAttestations bool `json:"honor_attestations"`

	// Attestation settings
	AttestationTTL time.Duration `json:"attestation_ttl"`

	// Batch fan-out; 0 means one worker per source
	Concurrency int `json:"concurrency"`

	// Sources larger than this are reported as skipped; 0 disables the check
	MaxContentSize int `json:"max_content_size"`

	// Timeouts
	ScanTimeout   time.Duration `json:"scan_timeout"`
	ActionTimeout time.Duration `json:"action_timeout"`
	StreamTimeout time.Duration `json:"stream_timeout"`
}

// DefaultProcessorConfig returns default processor configuration
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		ServiceID:         "leakwatch",
		Mode:              scan.ModeFast,
		EnableAttestation: true,
		EnableStreaming:   true,
		EnableActions:     true,
		HonorAttestations: true,
		AttestationTTL:    24 * time.Hour,
		Concurrency:       8,
		ScanTimeout:       60 * time.Second,
		ActionTimeout:     10 * time.Second,
		StreamTimeout:     5 * time.Second,
	}
}

// ConfigFromSettings builds the processor configuration from the loaded
// service configuration.
func ConfigFromSettings(cfg *config.Config) (*ProcessorConfig, error) {
	pc := DefaultProcessorConfig()

	mode, err := scan.ParseMode(cfg.Scanning.Mode)
	if err != nil {
		return nil, err
	}
	pc.Mode = mode

	if cfg.Attestation.ServiceID != "" {
		pc.ServiceID = cfg.Attestation.ServiceID
	} else if cfg.Service.ID != "" {
		pc.ServiceID = cfg.Service.ID
	}
	if cfg.Scanning.Timeout > 0 {
		pc.ScanTimeout = cfg.Scanning.Timeout
	}
	pc.MaxContentSize = cfg.Scanning.MaxContentSize
	pc.EnableAttestation = cfg.Attestation.Enabled
	pc.HonorAttestations = cfg.Attestation.Enabled
	if cfg.Attestation.TTL > 0 {
		pc.AttestationTTL = cfg.Attestation.TTL
	}
	pc.EnableStreaming = cfg.Streaming.Enabled
	pc.EnableActions = cfg.Actions.Enabled
	if cfg.Pipeline.Concurrency > 0 {
		pc.Concurrency = cfg.Pipeline.Concurrency
	}
	return pc, nil
}
