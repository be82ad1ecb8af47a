package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateReferralCode returns a URL-safe code from 8 random bytes.
// Callers must retry on unique-constraint collision.
func GenerateReferralCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
