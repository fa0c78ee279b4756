package attest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

var errNilAttestation = errors.New("attestation is nil")

// hmacSigner signs the canonical JSON form of an attestation with
// HMAC-SHA256.
type hmacSigner struct {
	key []byte
}

// NewHMACSigner creates a signer keyed with key.
func NewHMACSigner(key []byte) Signer {
	return &hmacSigner{key: key}
}

func (s *hmacSigner) Sign(a *types.Attestation) (string, error) {
	if a == nil {
		return "", errNilAttestation
	}
	mac, err := s.mac(a)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac), nil
}

func (s *hmacSigner) Verify(a *types.Attestation) error {
	if a == nil {
		return errNilAttestation
	}
	got, err := hex.DecodeString(a.Signature)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}
	want, err := s.mac(a)
	if err != nil {
		return err
	}
	if !hmac.Equal(want, got) {
		return errors.New("signature mismatch")
	}
	return nil
}

func (s *hmacSigner) mac(a *types.Attestation) ([]byte, error) {
	payload, err := canonicalPayload(a)
	if err != nil {
		return nil, err
	}
	m := hmac.New(sha256.New, s.key)
	m.Write(payload)
	return m.Sum(nil), nil
}

// canonicalPayload is every attestation field except the signature. Times
// are UTC so an attestation decoded from JSON verifies like the original.
func canonicalPayload(a *types.Attestation) ([]byte, error) {
	c := *a
	c.Signature = ""
	c.ScannedAt = c.ScannedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	b, err := json.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("encoding attestation %s: %w", a.ID, err)
	}
	return b, nil
}
