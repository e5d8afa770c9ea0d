package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

func HashString(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Fingerprint returns a short, log-safe identifier for a secret.
func Fingerprint(secret string) string {
	if secret == "" {
		return "none"
	}
	return HashString(secret)[:12]
}
