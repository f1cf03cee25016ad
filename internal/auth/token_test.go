package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/marketplace/internal/models"
)

func TestAuthToken_RoundTrip(t *testing.T) {
	token := NewAuthToken([]byte("0123456789abcdef"))

	signed, err := token.CreateToken(&models.TokenPayload{UserID: 42, Role: models.RoleVendor})
	require.NoError(t, err)

	payload, err := token.VerifyToken(signed)
	require.NoError(t, err)

	assert.Equal(t, int64(42), payload.UserID)
	assert.Equal(t, models.RoleVendor, payload.Role)
}

func TestAuthToken_WrongKeyRejected(t *testing.T) {
	token := NewAuthToken([]byte("0123456789abcdef"))
	other := NewAuthToken([]byte("fedcba9876543210"))

	signed, err := token.CreateToken(&models.TokenPayload{UserID: 42})
	require.NoError(t, err)

	_, err = other.VerifyToken(signed)
	assert.Error(t, err)
}

func TestAuthToken_GarbageRejected(t *testing.T) {
	token := NewAuthToken([]byte("0123456789abcdef"))

	_, err := token.VerifyToken("not.a.token")
	assert.Error(t, err)
}
