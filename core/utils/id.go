package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GeneratePublicID returns a short URL-safe identifier for public resources.
func GeneratePublicID(length int) string {
	id, err := gonanoid.Generate(idAlphabet, length)
	if err != nil {
		return ""
	}
	return id
}

// GenerateRandomString generates a cryptographically secure random string
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to nanoid if crypto/rand fails
		id, _ := gonanoid.Generate(idAlphabet, length)
		return id
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length]
}

// GenerateCancelToken returns a single-use cancellation secret and its
// sha256 digest. Only the digest may be persisted; the raw token is handed
// to the caller exactly once.
func GenerateCancelToken(numBytes int) (token string, digest string, err error) {
	buf := make([]byte, numBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate cancel token: %w", err)
	}
	token = hex.EncodeToString(buf)
	digest = DigestToken(token)
	return token, digest, nil
}

// DigestToken hashes a presented cancellation secret for lookup. The digest
// is deterministic so the signup row can be found by it.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
