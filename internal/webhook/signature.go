// Package webhook verifies, parses and dispatches inbound provider
// deliveries. Dispatch is an in-process bus: ordered, fault-isolated, no
// persistence. The provider retries failed deliveries on its side, so a
// crashed dispatch is recovered out-of-band.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifyResult is the outcome of signature verification, with a distinct
// reason per failure mode.
type VerifyResult struct {
	Valid  bool
	Reason string
}

const (
	ReasonMissingHeader = "missing signature header"
	ReasonBadPrefix     = "signature header lacks sha256= prefix"
	ReasonMismatch      = "signature digest mismatch"
	ReasonNoSecret      = "no webhook secret configured, verification bypassed"
)

// VerifySignature checks the HMAC-SHA256 digest of the raw request bytes
// against the signature header, in constant time.
//
// An empty secret bypasses verification entirely. That is an escape hatch
// for local development ONLY; production deployments must configure the
// shared secret or every payload will be accepted unverified.
func VerifySignature(secret, body []byte, signatureHeader string) VerifyResult {
	if len(secret) == 0 {
		return VerifyResult{Valid: true, Reason: ReasonNoSecret}
	}
	if signatureHeader == "" {
		return VerifyResult{Valid: false, Reason: ReasonMissingHeader}
	}
	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return VerifyResult{Valid: false, Reason: ReasonBadPrefix}
	}

	want, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil {
		return VerifyResult{Valid: false, Reason: ReasonMismatch}
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), want) {
		return VerifyResult{Valid: false, Reason: ReasonMismatch}
	}
	return VerifyResult{Valid: true}
}

// Sign computes the signature header value for body. Used by tests and by
// the provider simulator.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
