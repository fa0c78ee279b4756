package attest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

// --- Helper functions ---

func newTestAttestation() *types.Attestation {
	now := time.Now()
	return &types.Attestation{
		ID:           uuid.New().String(),
		ContentHash:  "abc123hash",
		Channel:      "pastebin",
		Mode:         string(scan.ModeDeep),
		Clean:        false,
		FindingCount: 2,
		Categories:   []string{"PAN", "PHONE"},
		Score:        score.SourceScore{Score: 5.7, Label: score.LabelMedium},
		ScannedAt:    now,
		ScannedBy:    "test-service",
		SourceID:     "src-1",
		ExpiresAt:    now.Add(5 * time.Minute),
	}
}

func testSigningKey() []byte {
	return []byte("test-signing-key-for-hmac-256-operations")
}

func testResult(mode scan.Mode, findings int) *scan.Result {
	r := &scan.Result{ID: "scan-1", Mode: mode}
	for i := 0; i < findings; i++ {
		r.Findings = append(r.Findings, scan.Finding{Category: scan.CategoryPAN})
	}
	return r
}

// --- Signer Tests ---

func TestHMACSigner_SignVerify(t *testing.T) {
	signer := NewHMACSigner(testSigningKey())
	att := newTestAttestation()

	sig, err := signer.Sign(att)
	if err != nil {
		t.Fatalf("Sign() returned error: %v", err)
	}
	if sig == "" {
		t.Fatal("Sign() returned empty signature")
	}

	att.Signature = sig
	if err := signer.Verify(att); err != nil {
		t.Fatalf("Verify() returned error for valid signature: %v", err)
	}
}

func TestHMACSigner_SignDeterministic(t *testing.T) {
	signer := NewHMACSigner(testSigningKey())
	att := newTestAttestation()

	sig1, err := signer.Sign(att)
	if err != nil {
		t.Fatalf("Sign() returned error: %v", err)
	}
	sig2, err := signer.Sign(att)
	if err != nil {
		t.Fatalf("Sign() returned error: %v", err)
	}
	if sig1 != sig2 {
		t.Fatalf("Sign() is not deterministic: %q != %q", sig1, sig2)
	}
}

func TestHMACSigner_Nil(t *testing.T) {
	signer := NewHMACSigner(testSigningKey())

	if _, err := signer.Sign(nil); err == nil {
		t.Fatal("Sign(nil) should return error")
	}
	if err := signer.Verify(nil); err == nil {
		t.Fatal("Verify(nil) should return error")
	}
}

func TestHMACSigner_Tampered(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(a *types.Attestation)
	}{
		{"channel", func(a *types.Attestation) { a.Channel = "unknown" }},
		{"mode", func(a *types.Attestation) { a.Mode = string(scan.ModeFast) }},
		{"finding count", func(a *types.Attestation) { a.FindingCount = 0 }},
		{"clean flag", func(a *types.Attestation) { a.Clean = true }},
		{"categories", func(a *types.Attestation) { a.Categories = []string{"PAN"} }},
		{"score", func(a *types.Attestation) { a.Score.Score = 1.0 }},
		{"label", func(a *types.Attestation) { a.Score.Label = score.LabelInfo }},
		{"expiry", func(a *types.Attestation) { a.ExpiresAt = a.ExpiresAt.Add(time.Hour) }},
	}

	signer := NewHMACSigner(testSigningKey())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := newTestAttestation()
			sig, err := signer.Sign(att)
			if err != nil {
				t.Fatalf("Sign() returned error: %v", err)
			}
			att.Signature = sig

			tt.tamper(att)
			if err := signer.Verify(att); err == nil {
				t.Fatal("Verify() should fail for tampered attestation")
			}
		})
	}
}

func TestHMACSigner_WrongKey(t *testing.T) {
	att := newTestAttestation()
	sig, err := NewHMACSigner(testSigningKey()).Sign(att)
	if err != nil {
		t.Fatalf("Sign() returned error: %v", err)
	}
	att.Signature = sig

	if err := NewHMACSigner([]byte("another-key")).Verify(att); err == nil {
		t.Fatal("Verify() should fail with a different key")
	}
}

func TestHMACSigner_InvalidSignatureHex(t *testing.T) {
	att := newTestAttestation()
	att.Signature = "not-hex!"

	if err := NewHMACSigner(testSigningKey()).Verify(att); err == nil {
		t.Fatal("Verify() should fail for non-hex signature")
	}
}

// --- Cache Tests ---

func TestMemoryCache_SetGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	att := newTestAttestation()

	if err := cache.Set(ctx, att); err != nil {
		t.Fatalf("Set() returned error: %v", err)
	}

	got, err := cache.Get(ctx, CacheKey(att))
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if got == nil || got.ID != att.ID {
		t.Fatalf("Get() = %+v, want attestation %s", got, att.ID)
	}

	other, _ := cache.Get(ctx, key(att.ContentHash, "github_public"))
	if other != nil {
		t.Error("attestation for one channel must not be returned for another")
	}
}

func TestMemoryCache_SetNil(t *testing.T) {
	if err := NewMemoryCache().Set(context.Background(), nil); err == nil {
		t.Fatal("Set(nil) should return error")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	att := newTestAttestation()
	att.ExpiresAt = time.Now().Add(-time.Second)

	if err := cache.Set(ctx, att); err != nil {
		t.Fatalf("Set() returned error: %v", err)
	}
	got, err := cache.Get(ctx, CacheKey(att))
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if got != nil {
		t.Fatal("expired attestation should not be returned")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	att := newTestAttestation()

	_ = cache.Set(ctx, att)
	if err := cache.Delete(ctx, CacheKey(att)); err != nil {
		t.Fatalf("Delete() returned error: %v", err)
	}
	if got, _ := cache.Get(ctx, CacheKey(att)); got != nil {
		t.Fatal("deleted attestation should not be returned")
	}
	if err := cache.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete() of missing key returned error: %v", err)
	}
}

func TestBoundedCache_Size(t *testing.T) {
	if _, err := NewBoundedCache(0); err == nil {
		t.Fatal("NewBoundedCache(0) should return error")
	}
	cache, err := NewBoundedCache(16)
	if err != nil {
		t.Fatalf("NewBoundedCache() returned error: %v", err)
	}
	att := newTestAttestation()
	if err := cache.Set(context.Background(), att); err != nil {
		t.Fatalf("Set() returned error: %v", err)
	}
	if got, _ := cache.Get(context.Background(), CacheKey(att)); got == nil {
		t.Fatal("Get() should return the stored attestation")
	}
}

func TestCacheKey_NormalisesChannel(t *testing.T) {
	if key("h", " GitHub_Public ") != key("h", "github_public") {
		t.Error("channel names should be normalised in cache keys")
	}
	if key("h", "") != key("h", "unknown") {
		t.Error("empty channel should key as unknown")
	}
}

// --- Attestor Tests ---

func TestAttestor_Create(t *testing.T) {
	attestor := NewAttestor(testSigningKey(), nil)
	ctx := context.Background()
	content := []byte("customer pan ABCPE1234F")

	s := score.SourceScore{
		Score:           5.7,
		Label:           score.LabelMedium,
		CategoriesFound: []scan.Category{scan.CategoryPAN, scan.CategoryPhone},
	}
	att, err := attestor.Create(ctx, CreateRequest{
		Content:  content,
		SourceID: "src-1",
		Channel:  "Pastebin",
		Result:   testResult(scan.ModeDeep, 2),
		Score:    s,
	})
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}

	h := sha256.Sum256(content)
	if att.ContentHash != hex.EncodeToString(h[:]) {
		t.Errorf("ContentHash = %q, want SHA-256 of content", att.ContentHash)
	}
	if att.Channel != "pastebin" {
		t.Errorf("Channel = %q, want pastebin", att.Channel)
	}
	if att.Mode != "deep" {
		t.Errorf("Mode = %q, want deep", att.Mode)
	}
	if att.Clean || att.FindingCount != 2 {
		t.Errorf("Clean = %v, FindingCount = %d; want false, 2", att.Clean, att.FindingCount)
	}
	if strings.Join(att.Categories, ",") != "PAN,PHONE" {
		t.Errorf("Categories = %v, want [PAN PHONE]", att.Categories)
	}
	if att.ScannedBy != "leakwatch" || att.SourceID != "src-1" {
		t.Errorf("ScannedBy = %q, SourceID = %q", att.ScannedBy, att.SourceID)
	}
	if d := att.ExpiresAt.Sub(att.ScannedAt); d != 24*time.Hour {
		t.Errorf("TTL = %v, want 24h", d)
	}
	if err := attestor.Verify(ctx, att); err != nil {
		t.Errorf("Verify() of fresh attestation returned error: %v", err)
	}

	cached, err := attestor.Lookup(ctx, content, "pastebin")
	if err != nil {
		t.Fatalf("Lookup() returned error: %v", err)
	}
	if cached == nil || cached.ID != att.ID {
		t.Errorf("Lookup() = %+v, want the created attestation", cached)
	}
}

func TestAttestor_CreateDegradedDeepAttestsFast(t *testing.T) {
	attestor := NewAttestor(testSigningKey(), nil)
	result := testResult(scan.ModeDeep, 0)
	result.Degraded = true

	att, err := attestor.Create(context.Background(), CreateRequest{Content: []byte("x"), Result: result})
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	if att.Mode != "fast" {
		t.Errorf("Mode = %q, want fast for a degraded deep scan", att.Mode)
	}
	if !att.Clean {
		t.Error("attestation without findings should be clean")
	}
}

func TestAttestor_CreateWithCustomTTL(t *testing.T) {
	attestor := NewAttestor(testSigningKey(), nil)

	att, err := attestor.Create(context.Background(), CreateRequest{
		Content: []byte("x"),
		Result:  testResult(scan.ModeFast, 0),
		TTL:     time.Minute,
	})
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	if d := att.ExpiresAt.Sub(att.ScannedAt); d != time.Minute {
		t.Errorf("TTL = %v, want 1m", d)
	}
}

func TestAttestor_CreateNilResult(t *testing.T) {
	attestor := NewAttestor(testSigningKey(), nil)
	if _, err := attestor.Create(context.Background(), CreateRequest{Content: []byte("x")}); err == nil {
		t.Fatal("Create() without a result should return error")
	}
}

func TestAttestor_LookupWithoutCaching(t *testing.T) {
	cfg := DefaultAttestorConfig()
	cfg.EnableCaching = false
	attestor := NewAttestor(testSigningKey(), cfg)
	ctx := context.Background()

	if _, err := attestor.Create(ctx, CreateRequest{Content: []byte("x"), Result: testResult(scan.ModeFast, 0)}); err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	got, err := attestor.Lookup(ctx, []byte("x"), "")
	if err != nil || got != nil {
		t.Errorf("Lookup() = %v, %v; want nil, nil with caching disabled", got, err)
	}
}

func TestAttestor_VerifyExpired(t *testing.T) {
	attestor := NewAttestor(testSigningKey(), nil)
	ctx := context.Background()

	att, err := attestor.Create(ctx, CreateRequest{
		Content: []byte("x"),
		Result:  testResult(scan.ModeFast, 0),
		TTL:     -time.Minute,
	})
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	if err := attestor.Verify(ctx, att); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("Verify() = %v, want expiry error", err)
	}
	if err := attestor.Verify(ctx, nil); err == nil {
		t.Error("Verify(nil) should return error")
	}
}

func TestAttestor_CanSkip(t *testing.T) {
	attestor := NewAttestor(testSigningKey(), nil)
	ctx := context.Background()
	content := []byte("aadhaar 2345 6789 0124")

	deep, err := attestor.Create(ctx, CreateRequest{Content: content, Channel: "pastebin", Result: testResult(scan.ModeDeep, 1)})
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	fast, err := attestor.Create(ctx, CreateRequest{Content: content, Channel: "pastebin", Result: testResult(scan.ModeFast, 1)})
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	tampered := *deep
	tampered.FindingCount = 0
	expired, err := attestor.Create(ctx, CreateRequest{Content: content, Channel: "pastebin", Result: testResult(scan.ModeDeep, 1), TTL: -time.Second})
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}

	tests := []struct {
		name string
		req  SkipCheckRequest
		want bool
	}{
		{"no attestation", SkipCheckRequest{Content: content, Channel: "pastebin", Mode: scan.ModeFast}, false},
		{"deep covers deep", SkipCheckRequest{Attestation: deep, Content: content, Channel: "pastebin", Mode: scan.ModeDeep}, true},
		{"deep covers fast", SkipCheckRequest{Attestation: deep, Content: content, Channel: "pastebin", Mode: scan.ModeFast}, true},
		{"empty mode means fast", SkipCheckRequest{Attestation: fast, Content: content, Channel: "pastebin"}, true},
		{"fast does not cover deep", SkipCheckRequest{Attestation: fast, Content: content, Channel: "pastebin", Mode: scan.ModeDeep}, false},
		{"different content", SkipCheckRequest{Attestation: deep, Content: []byte("changed"), Channel: "pastebin", Mode: scan.ModeFast}, false},
		{"different channel", SkipCheckRequest{Attestation: deep, Content: content, Channel: "github_public", Mode: scan.ModeFast}, false},
		{"tampered", SkipCheckRequest{Attestation: &tampered, Content: content, Channel: "pastebin", Mode: scan.ModeFast}, false},
		{"expired", SkipCheckRequest{Attestation: expired, Content: content, Channel: "pastebin", Mode: scan.ModeFast}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := attestor.CanSkip(ctx, tt.req)
			if got != tt.want {
				t.Fatalf("CanSkip() = %v (%q), want %v", got, reason, tt.want)
			}
			if got && !strings.Contains(reason, "valid attestation from leakwatch") {
				t.Errorf("reason = %q", reason)
			}
			if !got && reason != "" {
				t.Errorf("reason = %q, want empty when scanning is required", reason)
			}
		})
	}
}

func TestIsModeAdequate(t *testing.T) {
	tests := []struct {
		attested, requested scan.Mode
		want                bool
	}{
		{scan.ModeFast, scan.ModeFast, true},
		{scan.ModeDeep, scan.ModeDeep, true},
		{scan.ModeDeep, scan.ModeFast, true},
		{scan.ModeFast, scan.ModeDeep, false},
	}
	for _, tt := range tests {
		if got := isModeAdequate(tt.attested, tt.requested); got != tt.want {
			t.Errorf("isModeAdequate(%s, %s) = %v, want %v", tt.attested, tt.requested, got, tt.want)
		}
	}
}
