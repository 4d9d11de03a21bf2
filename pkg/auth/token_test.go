package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

func testTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens(config.JWTConfig{Secret: "secret", Issuer: "payflow", ExpirationMinutes: 30})
	require.NoError(t, err)
	return tokens
}

func TestMintAndParse(t *testing.T) {
	tokens := testTokens(t)
	userID := uuid.New()

	token, err := tokens.Mint(time.Now(), AccessTokenPayload{UserID: userID, Role: enums.UserRoleSeller})
	require.NoError(t, err)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.UserRoleSeller, claims.Role)
	assert.Equal(t, "payflow", claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejects(t *testing.T) {
	tokens := testTokens(t)
	sign := func(claims AccessTokenClaims, secret string) string {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}
	valid := jwt.RegisteredClaims{Issuer: "payflow", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	expired, err := tokens.Mint(time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleBuyer})
	require.NoError(t, err)

	cases := map[string]string{
		"expired":      expired,
		"wrong secret": sign(AccessTokenClaims{UserID: uuid.New(), Role: enums.UserRoleBuyer, RegisteredClaims: valid}, "other"),
		"unknown role": sign(AccessTokenClaims{UserID: uuid.New(), Role: "owner", RegisteredClaims: valid}, "secret"),
		"no user":      sign(AccessTokenClaims{Role: enums.UserRoleBuyer, RegisteredClaims: valid}, "secret"),
		"no expiry":    sign(AccessTokenClaims{UserID: uuid.New(), Role: enums.UserRoleBuyer, RegisteredClaims: jwt.RegisteredClaims{Issuer: "payflow"}}, "secret"),
		"other issuer": sign(AccessTokenClaims{UserID: uuid.New(), Role: enums.UserRoleBuyer, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}, "secret"),
		"garbage": "not.a.jwt",
	}
	for name, token := range cases {
		_, err := tokens.Parse(token)
		assert.Error(t, err, name)
	}
}

func TestParseToleratesSmallClockSkew(t *testing.T) {
	tokens := testTokens(t)
	token, err := tokens.Mint(time.Now().Add(-30*time.Minute-10*time.Second), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	require.NoError(t, err)
	_, err = tokens.Parse(token)
	assert.NoError(t, err)
}

func TestNewTokensAndMintValidate(t *testing.T) {
	for _, cfg := range []config.JWTConfig{
		{Issuer: "payflow", ExpirationMinutes: 30},
		{Secret: "secret", ExpirationMinutes: 30},
		{Secret: "secret", Issuer: "payflow"},
	} {
		_, err := NewTokens(cfg)
		assert.Error(t, err)
	}

	tokens := testTokens(t)
	_, err := tokens.Mint(time.Now(), AccessTokenPayload{Role: enums.UserRoleBuyer})
	assert.Error(t, err)
	_, err = tokens.Mint(time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "owner"})
	assert.Error(t, err)
}

func TestOneShotHelpers(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "payflow", ExpirationMinutes: 5}
	userID := uuid.New()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: enums.UserRoleBuyer, JTI: "jti-1"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "jti-1", claims.ID)

	_, err = ParseAccessToken(config.JWTConfig{}, token)
	assert.Error(t, err)
}
