package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// ComputeSignature returns the hex HMAC-SHA512 of body keyed by secret, the
// scheme the gateway uses for its X-Signature header.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the supplied header value against the recomputed
// signature in constant time. An empty secret disables verification (the
// admin has not configured one).
func VerifySignature(secret string, body []byte, supplied string) bool {
	if secret == "" {
		return true
	}
	expected := ComputeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(supplied))
}
