// Package token generates opaque random secrets.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandomToken returns size random bytes, URL-safe base64 encoded.
func GenerateRandomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
