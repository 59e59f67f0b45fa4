package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// placeholderPrefix can never start a bcrypt hash, so comparison always fails
const placeholderPrefix = "!external:"

// HashPassword hashes a password using bcrypt
func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// PlaceholderPasswordHash returns a value for the password column of accounts
// that may only sign in through an external identity provider. No password matches it.
func PlaceholderPasswordHash() string {
	return placeholderPrefix + uuid.New().String()
}

// IsPlaceholderPasswordHash reports whether hash came from PlaceholderPasswordHash
func IsPlaceholderPasswordHash(hash string) bool {
	return strings.HasPrefix(hash, placeholderPrefix)
}
