// Package auth holds the credential primitives: password hashing, password
// policy, and signed bearer tokens. Nothing here touches storage.
package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/akopjandvd/todo-api/internal/constants"
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	// Hash returns a salted one-way hash of plaintext.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches hash. A malformed hash never matches.
	Verify(plaintext, hash string) bool
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt hasher. Costs outside bcrypt's range use bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// IsStrongPassword reports whether p has at least eight characters including an
// uppercase letter, a lowercase letter, a digit and a symbol.
func IsStrongPassword(p string) bool {
	if utf8.RuneCountInString(p) < constants.MinPasswordLength {
		return false
	}

	var upper, lower, digit, symbol bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			// anything outside [A-Za-z0-9] counts, including non-ASCII letters
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
