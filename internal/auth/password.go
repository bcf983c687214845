package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrSecretTooShort = errors.New("secret must be at least 16 characters")
)

const (
	bcryptCost      = 12
	minSecretLength = 16
)

// HashSecret hashes a shared secret (e.g. the metrics scrape token) with
// bcrypt so only the hash needs to live in configuration.
func HashSecret(secret string) (string, error) {
	if len(secret) < minSecretLength {
		return "", ErrSecretTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckSecret compares a secret with its hash
func CheckSecret(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
