package auth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
	passwordSymbols  = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

// ValidatePassword enforces the password policy: at least eight characters
// with one ASCII letter, one digit and one symbol from passwordSymbols.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &PasswordError{Message: fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères", MinPasswordLength)}
	}
	if len(password) > MaxPasswordBytes {
		return &PasswordError{Message: fmt.Sprintf("Le mot de passe ne doit pas dépasser %d octets", MaxPasswordBytes)}
	}

	var letter, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	switch {
	case !letter:
		return &PasswordError{Message: "Le mot de passe doit contenir au moins une lettre"}
	case !digit:
		return &PasswordError{Message: "Le mot de passe doit contenir au moins un chiffre"}
	case !symbol:
		return &PasswordError{Message: "Le mot de passe doit contenir au moins un caractère spécial"}
	}
	return nil
}

// HashPassword returns a bcrypt hash; bcrypt salts every hash itself.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. Malformed hashes
// never verify.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
