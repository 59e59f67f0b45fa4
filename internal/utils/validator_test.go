package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@x.com", NormalizeEmail("  User@X.com "))
	assert.Equal(t, NormalizeEmail("User@X.com"), NormalizeEmail(NormalizeEmail("User@X.com")))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("user@example.com"))
	assert.False(t, ValidateEmail("invalid-email"))
	assert.False(t, ValidateEmail(""))
}

func TestValidatePassword(t *testing.T) {
	assert.False(t, ValidatePassword("abc", 8))
	assert.True(t, ValidatePassword("abcdefgh", 8))
	assert.True(t, ValidatePassword("пароль12", 8))
}

func TestHashToken(t *testing.T) {
	h := HashToken("invite-token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("invite-token"))
	assert.NotEqual(t, h, HashToken("other"))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	assert.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestPlaceholderPasswordHash(t *testing.T) {
	hash := PlaceholderPasswordHash()
	assert.False(t, CheckPasswordHash("", hash))
	assert.False(t, CheckPasswordHash(hash, hash))
	assert.NotEqual(t, hash, PlaceholderPasswordHash())
	assert.True(t, IsPlaceholderPasswordHash(hash))

	bcryptHash, err := HashPassword("correct horse", 4)
	assert.NoError(t, err)
	assert.False(t, IsPlaceholderPasswordHash(bcryptHash))
}
