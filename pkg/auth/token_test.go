package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josima5/venda-projetos-sub001/pkg/config"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "venda"}
	token, err := MintAccessToken(cfg, time.Now(), "user-42", time.Hour)
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.User())
	assert.Equal(t, "venda", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejectsBadTokens(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "venda"}

	expired, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), "user-1", time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, expired)
	assert.Error(t, err)

	foreign, err := MintAccessToken(config.JWTConfig{Secret: "other", Issuer: "venda"}, time.Now(), "user-1", time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, foreign)
	assert.Error(t, err)

	otherIssuer, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "elsewhere"}, time.Now(), "user-1", time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, otherIssuer)
	assert.Error(t, err)

	_, err = ParseAccessToken(config.JWTConfig{}, expired)
	assert.Error(t, err)
}

func TestParseAcceptsSubjectOnlyTokens(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret"}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "firebase-uid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, raw)
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid", claims.User())
}

func TestParseRejectsMissingSubject(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret"}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, raw)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc "))
	assert.Equal(t, "abc", BearerToken("abc"))
	assert.Equal(t, "", BearerToken(""))
}
