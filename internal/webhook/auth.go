package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Teams outgoing webhooks sign the raw request body with HMAC-SHA256 over
// the shared secret and present it as "Authorization: HMAC <base64>".
// That is the one canonical form — no alternate encodings are tried.

// VerifySignature checks the Teams outgoing-webhook signature against the
// raw request body. Returns false for a missing header or token.
func VerifySignature(body []byte, authHeader, token string) bool {
	if token == "" || authHeader == "" {
		return false
	}

	sig := strings.TrimPrefix(authHeader, "HMAC ")

	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}

// Sign computes the signature header value for a body, the counterpart of
// VerifySignature.
func Sign(body []byte, token string) string {
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	return "HMAC " + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
