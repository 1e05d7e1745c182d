package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spendtrack/internal/models"
)

func TestJWTManager(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "ada@example.com", DisplayName: "Ada", PhotoURL: "https://example.com/ada.png"}

	t.Run("round trip", func(t *testing.T) {
		m := NewJWTManager("secret", time.Hour)
		token, err := m.Generate(user)
		require.NoError(t, err)

		claims, err := m.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "Ada", claims.User().DisplayName)
		assert.Equal(t, user.PhotoURL, claims.User().PhotoURL)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTManager("secret", time.Hour).Generate(user)
		require.NoError(t, err)

		_, err = NewJWTManager("other", time.Hour).Validate(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired", func(t *testing.T) {
		token, err := NewJWTManager("secret", -time.Minute).Generate(user)
		require.NoError(t, err)

		_, err = NewJWTManager("secret", time.Hour).Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestDecodeClaims(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "ada@example.com"}

	token, err := NewJWTManager("secret", time.Hour).Generate(user)
	require.NoError(t, err)

	claims, err := DecodeClaims(token, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = DecodeClaims(token, time.Now().Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = DecodeClaims("not-a-token", time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}
