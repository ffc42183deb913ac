package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor for stored credentials
	DefaultIterations = 100_000
	saltBytes         = 16
	keyBytes          = 32
)

// Hasher derives and verifies PBKDF2-HMAC-SHA256 password hashes
type Hasher struct {
	Iterations int
}

// DefaultHasher is used by the package-level helpers
var DefaultHasher = Hasher{Iterations: DefaultIterations}

// GenerateSalt returns 16 cryptographically random bytes, base64 encoded.
// An error means the system random source is unusable.
func GenerateSalt() (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("crypto/rand failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// HashPassword hashes a password with the default hasher
func HashPassword(password, base64Salt string) (string, error) {
	return DefaultHasher.Hash(password, base64Salt)
}

// VerifyPassword checks a password with the default hasher
func VerifyPassword(password, base64Salt, expectedHash string) bool {
	return DefaultHasher.Verify(password, base64Salt, expectedHash)
}

// Hash derives a 32-byte key from the password and base64 salt, base64 encoded
func (h Hasher) Hash(password, base64Salt string) (string, error) {
	salt, err := base64.StdEncoding.DecodeString(base64Salt)
	if err != nil {
		return "", fmt.Errorf("invalid salt encoding: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, h.iterations(), keyBytes, sha256.New)
	return base64.StdEncoding.EncodeToString(key), nil
}

// Verify recomputes the hash and compares it in constant time
func (h Hasher) Verify(password, base64Salt, expectedHash string) bool {
	computed, err := h.Hash(password, base64Salt)
	if err != nil {
		return false
	}
	return constantTimeEqual(expectedHash, computed)
}

func (h Hasher) iterations() int {
	if h.Iterations <= 0 {
		return DefaultIterations
	}
	return h.Iterations
}

// constantTimeEqual rejects different lengths up front, then XORs every byte
// without stopping at the first mismatch.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
