package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksipredictor/ksipredictor/internal/auth"
)

const testKey = "test-secret-key-for-testing-only"

func TestJWTService_GenerateAndValidate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC))
	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: testKey, Clock: clock})

	token, expiresAt, err := svc.GenerateOperatorToken("ops@ksi", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, clock.Now().Add(auth.DefaultTokenExpiry), expiresAt)

	subject, err := svc.ValidateOperatorToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@ksi", subject)
}

func TestJWTService_Expired(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC))
	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: testKey, Clock: clock})

	token, _, err := svc.GenerateOperatorToken("ops", time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = svc.ValidateOperatorToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestJWTService_MissingSubject(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: testKey})
	_, _, err := svc.GenerateOperatorToken("", time.Hour)
	assert.ErrorIs(t, err, auth.ErrMissingSubject)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: testKey})

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateOperatorToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_Mismatch(t *testing.T) {
	issuer := auth.NewJWTService(auth.JWTConfig{SigningKey: testKey})
	token, _, err := issuer.GenerateOperatorToken("ops", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  auth.JWTConfig
	}{
		{"wrong signing key", auth.JWTConfig{SigningKey: "other-key"}},
		{"wrong issuer", auth.JWTConfig{SigningKey: testKey, Issuer: "someone-else"}},
		{"wrong audience", auth.JWTConfig{SigningKey: testKey, Audience: "another-api"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewJWTService(tt.cfg).ValidateOperatorToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_RequiresOperatorRole(t *testing.T) {
	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.DefaultIssuer,
			Subject:   "viewer",
			Audience:  jwt.ClaimStrings{auth.DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: "viewer",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = auth.NewJWTService(auth.JWTConfig{SigningKey: testKey}).ValidateOperatorToken(token)
	assert.ErrorIs(t, err, auth.ErrNotOperator)
}
