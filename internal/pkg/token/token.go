// Package token generates opaque single-use tokens for email verification
// and password reset links.
package token

import (
	"crypto/rand"
	"encoding/hex"
)

const byteLen = 32

func New() (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
