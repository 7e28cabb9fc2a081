package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	const (
		key    = "test-signing-key"
		issuer = "qrattend-test"
	)

	t.Run("round trip preserves subject and role", func(t *testing.T) {
		token, exp, err := Issue("account-1", "student", issuer, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, exp.After(time.Now()))

		claims, err := Parse(token, key, issuer)
		require.NoError(t, err)
		assert.Equal(t, "account-1", claims.Subject)
		assert.Equal(t, "student", claims.Role)
	})

	t.Run("wrong key rejects", func(t *testing.T) {
		token, _, err := Issue("account-1", "student", issuer, key, time.Hour)
		require.NoError(t, err)

		_, err = Parse(token, "other-key", issuer)
		assert.Error(t, err)
	})

	t.Run("wrong issuer rejects", func(t *testing.T) {
		token, _, err := Issue("account-1", "student", "someone-else", key, time.Hour)
		require.NoError(t, err)

		_, err = Parse(token, key, issuer)
		assert.Error(t, err)
	})

	t.Run("expired token rejects", func(t *testing.T) {
		token, _, err := Issue("account-1", "student", issuer, key, -time.Minute)
		require.NoError(t, err)

		_, err = Parse(token, key, issuer)
		assert.Error(t, err)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("student123")
	require.NoError(t, err)
	assert.NotEqual(t, "student123", hash)

	assert.True(t, CheckPassword(hash, "student123"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("", "student123"))
}
