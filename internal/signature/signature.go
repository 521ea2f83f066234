// Package signature verifies webhook payload authenticity.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Verify reports whether claimed is the base64-encoded HMAC-SHA256 of body
// under secret. The comparison is constant time. body must be the raw request
// bytes as received on the wire; decoding the JSON first can normalize the
// payload and invalidate the signature basis.
func Verify(body []byte, claimed, secret string) bool {
	if claimed == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(claimed))
}

// Sign computes the base64-encoded HMAC-SHA256 of body under secret. Used by
// tests and diagnostic tooling to produce valid webhook requests.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
