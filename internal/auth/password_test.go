package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantMsg  string
	}{
		{"too short", "short1!", "au moins 8 caractères"},
		{"no letter", "12345678!", "au moins une lettre"},
		{"no digit", "abcdefgh!", "au moins un chiffre"},
		{"no symbol", "abcdefgh1", "au moins un caractère spécial"},
		{"too long for bcrypt", strings.Repeat("a1!", 25), "ne doit pas dépasser"},
		{"valid", "longenough1!", ""},
		{"valid with bracket", "Password1]", ""},
		{"valid with backslash", `Password1\`, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var perr *PasswordError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Message, tc.wantMsg)
		})
	}
}

func TestValidatePassword_CountsCharactersNotBytes(t *testing.T) {
	// seven runes, more than eight bytes
	assert.Error(t, ValidatePassword("éééé1!a"))
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("longenough1!")
	require.NoError(t, err)
	assert.NotEqual(t, "longenough1!", hash)

	assert.True(t, VerifyPassword("longenough1!", hash))
	assert.False(t, VerifyPassword("wrong1!pass", hash))
	assert.False(t, VerifyPassword("longenough1!", "not-a-bcrypt-hash"))

	again, err := HashPassword("longenough1!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "each hash carries its own salt")
}
