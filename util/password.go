package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "argon2id$"

// Argon2id parameters (OWASP minimums).
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024
	argon2Threads = 1
	argon2KeyLen  = 32
	saltBytes     = 16
)

var (
	jwtSecretByte []byte
	jwtMutex      sync.RWMutex
)

// SetJWTSecret sets the secret used to sign session tokens and to verify
// legacy HMAC password hashes. Safe for concurrent use.
func SetJWTSecret(secret string) {
	jwtMutex.Lock()
	defer jwtMutex.Unlock()
	jwtSecretByte = []byte(secret)
}

// GetJWTSecretByte returns a copy of the current secret bytes.
func GetJWTSecretByte() []byte {
	jwtMutex.RLock()
	defer jwtMutex.RUnlock()
	return append([]byte(nil), jwtSecretByte...)
}

// HashPassword is the legacy HMAC-SHA256 hash keyed by the session secret.
// New hashes are argon2id; this remains for verifying and upgrading old rows.
func HashPassword(password string) string {
	h := hmac.New(sha256.New, GetJWTSecretByte())
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateSalt returns a random hex-encoded salt.
func GenerateSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPasswordArgon2 hashes password with the hex-encoded salt.
func HashPasswordArgon2(password, salt string) (string, error) {
	saltRaw, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), saltRaw, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return argon2Prefix + hex.EncodeToString(key), nil
}

// HashNewPassword generates a salt and returns the argon2id hash with it.
func HashNewPassword(password string) (hash, salt string, err error) {
	salt, err = GenerateSalt()
	if err != nil {
		return "", "", err
	}
	hash, err = HashPasswordArgon2(password, salt)
	if err != nil {
		return "", "", err
	}
	return hash, salt, nil
}

// IsLegacyHash reports whether stored predates argon2id hashing.
func IsLegacyHash(stored string) bool {
	return !strings.HasPrefix(stored, argon2Prefix)
}

// VerifyPassword compares plain against the stored hash in constant time.
func VerifyPassword(plain, stored, salt string) (bool, error) {
	if stored == "" {
		return false, nil
	}
	if IsLegacyHash(stored) {
		return hmac.Equal([]byte(HashPassword(plain)), []byte(stored)), nil
	}
	computed, err := HashPasswordArgon2(plain, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1, nil
}
