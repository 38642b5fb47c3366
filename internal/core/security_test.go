// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, rehash, err := VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, rehash)

	ok, _, err = VerifyPassword("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, _, err := VerifyPassword("secret", "$bcrypt$whatever")
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestVerifyPasswordUpgradesOldParams(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)

	weaker := strings.Replace(hash, "m=65536", "m=32768", 1)
	assert.True(t, needsRehash(weaker))
	assert.False(t, needsRehash(hash))

	salt := strings.Split(hash, "$")[4]
	params := currentParams
	params.memory = 32 * 1024
	decoded, err := decodeSalt(salt)
	require.NoError(t, err)
	legacy := params.encode(decoded, params.derive("secret1", decoded))

	ok, rehash, err := VerifyPassword("secret1", legacy)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, rehash, "m=65536")
}

func TestVerifyPasswordTimingSafeWithoutHash(t *testing.T) {
	ok, rehash, err := VerifyPasswordTimingSafe("secret", nil)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rehash)
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	require.NoError(t, err)
	b, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}

func TestCompareTokenHash(t *testing.T) {
	hash := HashToken("refresh-token")

	assert.True(t, CompareTokenHash("refresh-token", hash))
	assert.False(t, CompareTokenHash("other-token", hash))
}

func decodeSalt(s string) ([]byte, error) {
	_, salt, _, err := parseHash("$argon2id$v=19$m=1,t=1,p=1$" + s + "$AAAA")
	return salt, err
}
