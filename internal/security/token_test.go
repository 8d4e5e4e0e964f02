package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	token, err := m.GenerateAccessToken(7, "owner@test", "MEMBER")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.AccountID)
	assert.Equal(t, "owner@test", claims.Email)
	assert.Equal(t, "MEMBER", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.Type)
}

func TestRefreshTokenType(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	token, err := m.GenerateRefreshToken(7, "owner@test")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.Type)
}

func TestValidateToken(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		other := NewTokenManager("another-secret-that-is-32-chars!", time.Hour)
		token, err := other.GenerateAccessToken(7, "owner@test", "MEMBER")
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		short := NewTokenManager(testSecret, time.Nanosecond)
		token, err := short.GenerateAccessToken(7, "owner@test", "MEMBER")
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		_, err = short.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}
