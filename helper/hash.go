package helper

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashAssertion derives the cache partition key for an on-behalf-of user
// assertion. The raw assertion never appears in cache keys or log output.
func HashAssertion(assertion string) string {
	if assertion == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(assertion))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
