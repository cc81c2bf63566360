package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leadcrm/internal/domain"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-only-secret"))
	require.NoError(t, err)
	return token
}

func TestDecodeClaims_IgnoresSignature(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signed(t, &Claims{
		UserID: "u-1",
		Email:  "agent@example.com",
		Role:   domain.RoleAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	claims, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, domain.RoleAgent, claims.Role)
	assert.True(t, claims.ExpiresAt.Time.Equal(exp))
	assert.Equal(t, domain.RoleAgent, RoleFromToken(token))
}

func TestDecodeClaims_Malformed(t *testing.T) {
	for _, token := range []string{
		"",
		"not-a-token",
		"a.b",
		"a.b.c.d",
		"eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig",
	} {
		_, err := DecodeClaims(token)
		require.Error(t, err, token)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeTokenMalformed), token)
		assert.True(t, IsExpired(token, time.Now()), token)
		assert.Equal(t, domain.Role(""), RoleFromToken(token))
	}
}

func rawToken(header, payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}

func TestDecodeClaims_ReadsOnlyPayload(t *testing.T) {
	payload := `{"userId":"u-2","role":"admin","exp":4102444800}`
	padded := base64.URLEncoding.EncodeToString([]byte(payload + " "))
	require.True(t, strings.HasSuffix(padded, "="))
	for name, token := range map[string]string{
		"no alg":          rawToken(`{"typ":"JWT"}`, payload),
		"unknown alg":     rawToken(`{"alg":"RSA-OAEP"}`, payload),
		"header not json": rawToken("??", payload),
		"padded payload":  "eyJhbGciOiJub25lIn0." + padded + ".",
	} {
		claims, err := DecodeClaims(token)
		require.NoError(t, err, name)
		assert.Equal(t, "u-2", claims.UserID, name)
		assert.Equal(t, domain.RoleAdmin, claims.Role, name)
		require.NotNil(t, claims.ExpiresAt, name)
		assert.Equal(t, int64(4102444800), claims.ExpiresAt.Unix(), name)
		assert.False(t, IsExpired(token, time.Now()), name)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	past := signed(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second))}})
	future := signed(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}})
	exact := signed(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now)}})
	noExp := signed(t, &Claims{UserID: "u-1"})

	assert.True(t, IsExpired(past, now))
	assert.False(t, IsExpired(future, now))
	assert.False(t, IsExpired(exact, now))
	assert.True(t, IsExpired(noExp, now))

	assert.True(t, apperrors.IsCode(CheckToken(past, now), apperrors.CodeTokenExpired))
	assert.True(t, apperrors.IsCode(CheckToken(noExp, now), apperrors.CodeTokenMalformed))
	assert.NoError(t, CheckToken(future, now))
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	user := &domain.User{ID: "u-9", Email: "admin@example.com", Role: domain.RoleAdmin}

	token, exp, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	other := NewTokenManager("different", 30)
	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := tm.GenerateToken(&domain.User{ID: "u-1", Role: domain.RoleAgent})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ParseToken(token)
	assert.Error(t, err)
	assert.True(t, IsExpired(token, time.Now()))
}
