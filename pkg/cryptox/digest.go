package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// KeyedDigest returns base64url(HMAC-SHA256(key, parts joined by 0x00)).
// Low-entropy values such as six digit codes or IP+user-agent pairs are
// stored this way so a leaked table cannot be brute forced offline without
// the key.
func KeyedDigest(key []byte, parts ...string) string {
	mac := hmac.New(sha256.New, key)
	for i, p := range parts {
		if i > 0 {
			mac.Write([]byte{0})
		}
		mac.Write([]byte(p))
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// EqualDigest compares two digests in constant time.
func EqualDigest(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
