package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "billbook", time.Hour)

	raw, err := tm.Generate("user-1", "a@example.com", "owner")
	require.NoError(t, err)

	claims, err := tm.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "owner", claims.Role)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", "billbook", time.Hour)
	raw, err := tm.Generate("user-1", "", "")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenManager("other", "billbook", time.Hour).Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewTokenManager("secret", "someone-else", time.Hour).Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager("secret", "billbook", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Issuer:    "billbook",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.Parse(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenManager_RequiresUser(t *testing.T) {
	_, err := NewTokenManager("s", "i", time.Hour).Generate(" ", "", "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = BearerToken("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Basic abc", "Bearer", "Bearer  "} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}

func TestPIN(t *testing.T) {
	hash, err := HashPIN("4711")
	require.NoError(t, err)

	assert.True(t, CheckPIN(hash, "4711"))
	assert.False(t, CheckPIN(hash, "4712"))
	assert.False(t, CheckPIN("", "4711"))

	for _, bad := range []string{"123", "123456789", "12a4", ""} {
		_, err := HashPIN(bad)
		assert.ErrorIs(t, err, ErrInvalidPIN, bad)
	}
}
