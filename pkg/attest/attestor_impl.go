package attest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

// defaultAttestor implements the Attestor interface combining signer and cache.
type defaultAttestor struct {
	signer Signer
	cache  Cache
	config *AttestorConfig
}

// NewAttestor creates a new Attestor with an HMAC signer and memory cache.
func NewAttestor(signingKey []byte, config *AttestorConfig) Attestor {
	return NewAttestorWithComponents(NewHMACSigner(signingKey), NewMemoryCache(), config)
}

// NewAttestorWithComponents creates a new Attestor with provided signer and cache.
func NewAttestorWithComponents(signer Signer, cache Cache, config *AttestorConfig) Attestor {
	if config == nil {
		config = DefaultAttestorConfig()
	}
	return &defaultAttestor{
		signer: signer,
		cache:  cache,
		config: config,
	}
}

// Create creates a new attestation for a completed scan.
func (a *defaultAttestor) Create(ctx context.Context, req CreateRequest) (*types.Attestation, error) {
	if req.Result == nil {
		return nil, fmt.Errorf("scan result is nil")
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = a.config.DefaultTTL
	}

	now := time.Now()

	categories := make([]string, 0, len(req.Score.CategoriesFound))
	for _, c := range req.Score.CategoriesFound {
		categories = append(categories, string(c))
	}

	attestation := &types.Attestation{
		ID:           uuid.New().String(),
		ContentHash:  ContentHash(req.Content),
		Channel:      string(score.ParseChannel(req.Channel)),
		Mode:         string(effectiveMode(req.Result)),
		Clean:        len(req.Result.Findings) == 0,
		FindingCount: len(req.Result.Findings),
		Categories:   categories,
		Score:        req.Score,
		ScannedAt:    now,
		ScannedBy:    a.config.ServiceID,
		SourceID:     req.SourceID,
		ExpiresAt:    now.Add(ttl),
	}

	sig, err := a.signer.Sign(attestation)
	if err != nil {
		return nil, fmt.Errorf("failed to sign attestation: %w", err)
	}
	attestation.Signature = sig

	if a.config.EnableCaching {
		if err := a.cache.Set(ctx, attestation); err != nil {
			return attestation, fmt.Errorf("caching attestation: %w", err)
		}
	}

	return attestation, nil
}

// Verify verifies an attestation signature and checks that it has not expired.
func (a *defaultAttestor) Verify(_ context.Context, attestation *types.Attestation) error {
	if attestation == nil {
		return fmt.Errorf("attestation is nil")
	}

	if time.Now().After(attestation.ExpiresAt) {
		return fmt.Errorf("attestation has expired at %s", attestation.ExpiresAt.Format(time.RFC3339))
	}

	if err := a.signer.Verify(attestation); err != nil {
		return fmt.Errorf("attestation signature invalid: %w", err)
	}

	return nil
}

// Lookup returns the cached attestation for content on channel.
func (a *defaultAttestor) Lookup(ctx context.Context, content []byte, channel string) (*types.Attestation, error) {
	if !a.config.EnableCaching {
		return nil, nil
	}
	return a.cache.Get(ctx, key(ContentHash(content), channel))
}

// CanSkip determines if scanning can be skipped based on an existing attestation.
// Returns (true, reason) if scanning can be skipped, or (false, "") if it cannot.
func (a *defaultAttestor) CanSkip(_ context.Context, req SkipCheckRequest) (bool, string) {
	att := req.Attestation
	if att == nil {
		return false, ""
	}

	if err := a.signer.Verify(att); err != nil {
		return false, ""
	}

	if att.ContentHash != ContentHash(req.Content) {
		return false, ""
	}

	if att.Channel != string(score.ParseChannel(req.Channel)) {
		return false, ""
	}

	mode := req.Mode
	if mode == "" {
		mode = scan.ModeFast
	}
	if !isModeAdequate(scan.Mode(att.Mode), mode) {
		return false, ""
	}

	if time.Now().After(att.ExpiresAt) {
		return false, ""
	}

	return true, fmt.Sprintf("valid attestation from %s (mode=%s, scanned_at=%s)",
		att.ScannedBy, att.Mode, att.ScannedAt.UTC().Format(time.RFC3339))
}

// ContentHash returns the hex-encoded SHA-256 hash of content.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// effectiveMode is the mode a result was actually produced with. A degraded
// deep scan fell back to fast scoring for at least one candidate.
func effectiveMode(r *scan.Result) scan.Mode {
	if r.Mode == "" || r.Degraded {
		return scan.ModeFast
	}
	return r.Mode
}

// isModeAdequate checks if the attested mode covers the requested mode.
// Deep covers fast; a mode always covers itself.
func isModeAdequate(attested, requested scan.Mode) bool {
	if attested == requested {
		return true
	}
	return attested == scan.ModeDeep && requested == scan.ModeFast
}
