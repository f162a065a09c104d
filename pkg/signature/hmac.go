package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Sign returns the base64 HMAC-SHA256 of payload.
func Sign(payload []byte, secret string) string {
	return base64.StdEncoding.EncodeToString(sum(payload, secret))
}

// Verify checks header against HMAC-SHA256 of the exact payload bytes.
// The header may be base64 or hex encoded.
func Verify(payload []byte, secret, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}
	expected := sum(payload, secret)

	if got, err := base64.StdEncoding.DecodeString(header); err == nil && hmac.Equal(expected, got) {
		return true
	}
	if got, err := hex.DecodeString(header); err == nil && hmac.Equal(expected, got) {
		return true
	}
	return false
}

func sum(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
