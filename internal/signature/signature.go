package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Verify reports whether header is a valid base64-encoded HMAC-SHA256 of
// body under secret. Missing header, missing secret, or malformed base64
// are all plain verification failures.
//
// algorithm: base64(HMAC-SHA256(body, secret))
func Verify(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}

	provided, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	// hmac.Equal is constant time; length is not secret, so the internal
	// length short-circuit is fine.
	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign computes the signature a sender would attach for body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
