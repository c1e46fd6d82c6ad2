package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateResetToken returns a 64-character hex password reset token.
func GenerateResetToken() (string, error) {
	return randomHex(32)
}

// GenerateAccessCode returns the short hex code gating private communities.
func GenerateAccessCode() (string, error) {
	return randomHex(3)
}

func randomHex(length int) (string, error) {
	b := make([]byte, length)

	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(b), nil
}
