// Package signature implements the HMAC-SHA256 request signing shared by the
// hook client and the receiving webhook handler.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the lowercase hex HMAC-SHA256 digest of payload using secret
// as the key. The same bytes must be used as the request body so the receiver
// can recompute an identical digest.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the expected signature for payload.
// Comparison is constant-time.
func Verify(payload []byte, sig, secret string) bool {
	if sig == "" {
		return false
	}
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(sig), []byte(expected))
}
