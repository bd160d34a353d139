package services

import (
	"testing"
	"time"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_ValidateAccessToken_Valid(t *testing.T) {
	svc := NewJWTService("test-secret", 15*time.Minute)
	bea := models.Principal{ID: uuid.New(), Username: "bea"}

	token, err := svc.GenerateAccessToken(bea)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, bea.ID, claims.UserID)
	assert.Equal(t, "bea", claims.Username)
	assert.Equal(t, "product-api", claims.Issuer)
	assert.Equal(t, bea, claims.Principal())
}

func TestJWTService_ValidateAccessToken_WrongSecret(t *testing.T) {
	svc1 := NewJWTService("secret-1", 15*time.Minute)
	svc2 := NewJWTService("secret-2", 15*time.Minute)

	token, err := svc1.GenerateAccessToken(models.Principal{ID: uuid.New(), Username: "bea"})
	require.NoError(t, err)

	_, err = svc2.ValidateAccessToken(token)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse token")
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute)

	token, err := svc.GenerateAccessToken(models.Principal{ID: uuid.New(), Username: "bea"})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)

	assert.Error(t, err)
}

func TestJWTService_ValidateAccessToken_WrongAlgorithm(t *testing.T) {
	svc := NewJWTService("test-secret", 15*time.Minute)

	claims := Claims{UserID: uuid.New(), Username: "bea"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)

	assert.Error(t, err)
}

func TestJWTService_ValidateAccessToken_MissingUserID(t *testing.T) {
	svc := NewJWTService("test-secret", 15*time.Minute)

	token, err := svc.GenerateAccessToken(models.Principal{Username: "nobody"})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)

	assert.ErrorContains(t, err, "no user id")
}

func TestJWTService_ValidateAccessToken_Garbage(t *testing.T) {
	svc := NewJWTService("test-secret", 15*time.Minute)

	_, err := svc.ValidateAccessToken("not-a-token")

	assert.Error(t, err)
}
