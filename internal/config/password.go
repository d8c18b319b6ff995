// Package config provides operator password configuration and hashing.
package config

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// PasswordConfig holds the bcrypt hash of the operator password. Mutating API
// endpoints (enqueue, company management, certificate upload) require a token
// issued against this password.
type PasswordConfig struct {
	OperatorHash string
}

// NewPasswordConfig creates a password configuration from environment
// variables. It reads OPERATOR_PASSWORD_HASH (a bcrypt hash) or, as a
// convenience for development, OPERATOR_PASSWORD (hashed at startup).
func NewPasswordConfig() (*PasswordConfig, error) {
	if hash := os.Getenv("OPERATOR_PASSWORD_HASH"); hash != "" {
		return &PasswordConfig{OperatorHash: hash}, nil
	}

	plain := os.Getenv("OPERATOR_PASSWORD")
	if plain == "" {
		return nil, fmt.Errorf("OPERATOR_PASSWORD_HASH or OPERATOR_PASSWORD is required but not set")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash operator password: %w", err)
	}
	return &PasswordConfig{OperatorHash: string(hash)}, nil
}

// VerifyPassword verifies a password attempt against the stored hash.
func (c *PasswordConfig) VerifyPassword(pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.OperatorHash), []byte(pw)) == nil
}
