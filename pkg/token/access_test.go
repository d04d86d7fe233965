package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyToken(t *testing.T) {
	secret := []byte("secret")

	t.Run("valid token yields participant id", func(t *testing.T) {
		tok, err := GenerateAccessToken(42, secret, time.Minute)
		require.NoError(t, err)

		claims, err := VerifyToken(tok, secret)
		require.NoError(t, err)
		id, err := claims.ParticipantID()
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := GenerateAccessToken(42, secret, time.Minute)
		require.NoError(t, err)

		_, err = VerifyToken(tok, []byte("other"))
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		tok, err := GenerateAccessToken(42, secret, -time.Minute)
		require.NoError(t, err)

		_, err = VerifyToken(tok, secret)
		require.Error(t, err)
	})

	t.Run("non-hmac signing method", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{ID: "42"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = VerifyToken(tok, secret)
		require.Error(t, err)
	})
}
