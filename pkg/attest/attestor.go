// Package attest provides signed scan attestations so that unchanged
// content is not rescanned on periodic sweeps.
package attest

import (
	"context"
	"time"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

// Attestor creates and verifies scan attestations
type Attestor interface {
	// Create creates a new attestation for a completed scan
	Create(ctx context.Context, req CreateRequest) (*types.Attestation, error)

	// Verify verifies an attestation signature and validity
	Verify(ctx context.Context, attestation *types.Attestation) error

	// Lookup returns the cached attestation for content published on
	// channel, or nil when there is none
	Lookup(ctx context.Context, content []byte, channel string) (*types.Attestation, error)

	// CanSkip determines if scanning can be skipped based on existing attestation
	CanSkip(ctx context.Context, req SkipCheckRequest) (canSkip bool, reason string)
}

// CreateRequest contains inputs for creating an attestation
type CreateRequest struct {
	Content  []byte
	SourceID string
	Channel  string
	Result   *scan.Result
	Score    score.SourceScore
	TTL      time.Duration
}

// SkipCheckRequest contains inputs for determining if scan can be skipped
type SkipCheckRequest struct {
	Attestation *types.Attestation
	Content     []byte
	Channel     string
	Mode        scan.Mode
}

// Signer signs attestations using HMAC
type Signer interface {
	// Sign creates HMAC signature for attestation
	Sign(attestation *types.Attestation) (string, error)

	// Verify verifies attestation signature
	Verify(attestation *types.Attestation) error
}

// Cache caches attestations for quick lookup
type Cache interface {
	// Get retrieves an attestation by key
	Get(ctx context.Context, key string) (*types.Attestation, error)

	// Set stores an attestation under CacheKey(attestation)
	Set(ctx context.Context, attestation *types.Attestation) error

	// Delete removes an attestation
	Delete(ctx context.Context, key string) error
}

// AttestorConfig configures the attestor
type AttestorConfig struct {
	ServiceID     string        `json:"service_id"`
	DefaultTTL    time.Duration `json:"default_ttl"`
	EnableCaching bool          `json:"enable_caching"`
}

// DefaultAttestorConfig returns default attestor configuration
func DefaultAttestorConfig() *AttestorConfig {
	return &AttestorConfig{
		ServiceID:     "leakwatch",
		DefaultTTL:    24 * time.Hour,
		EnableCaching: true,
	}
}

// CacheKey returns the cache key of an attestation.
func CacheKey(a *types.Attestation) string {
	return key(a.ContentHash, a.Channel)
}

func key(contentHash, channel string) string {
	return contentHash + "|" + string(score.ParseChannel(channel))
}
