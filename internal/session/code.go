package session

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/jason-s-yu/quizlive/internal/apperr"
)

const (
	// CodeLength is the number of characters in a join code.
	CodeLength = 6
	// MaxCodeAttempts bounds rejection sampling against existing codes.
	MaxCodeAttempts = 10

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// CodeExistsFunc reports whether a join code is already taken.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

// RandomCode returns a random uppercase join code.
func RandomCode() (string, error) {
	b := make([]byte, CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// GenerateCode draws codes until one is free, giving up after MaxCodeAttempts.
func GenerateCode(ctx context.Context, exists CodeExistsFunc) (string, error) {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		code, err := RandomCode()
		if err != nil {
			return "", apperr.Wrap(apperr.CodeInternal, err, "read random source")
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", apperr.Wrap(apperr.CodeInternal, err, "check session code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", apperr.CodeGenerationExhausted
}

// ValidCode reports whether s has the shape of a join code.
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
