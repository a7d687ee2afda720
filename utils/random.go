// Package utils provides utility functions for the application.
package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomToken returns a URL-safe random hex string of the given byte length.
// A length of 16 yields a 32-character token.
func RandomToken(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
