// Package auth holds bearer-token handling and the role permission table.
//
// The client side of this package only decodes tokens: DecodeClaims and
// IsExpired read the embedded claims without checking the signature. They
// exist to decide locally whether a stored session is worth resuming and
// which controls to show. They are not a security boundary. The API server
// verifies every token and enforces every permission on its own.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/leadcrm/internal/domain"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// Claims describes the JWT payload issued by the CRM API.
type Claims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// DecodeClaims reads the payload segment of a three-segment token. The
// header and signature are not inspected.
func DecodeClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, apperrors.NewTokenMalformed(errors.New("empty token"))
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, apperrors.NewTokenMalformed(errors.New("token must have three segments"))
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, apperrors.NewTokenMalformed(err)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, apperrors.NewTokenMalformed(err)
	}
	return &claims, nil
}

// IsExpired reports whether token is unusable at now: malformed, missing exp, or exp in the past.
func IsExpired(token string, now time.Time) bool {
	claims, err := DecodeClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Time.Before(now)
}

// CheckToken returns nil for a usable token, otherwise TOKEN_MALFORMED or TOKEN_EXPIRED.
func CheckToken(token string, now time.Time) error {
	claims, err := DecodeClaims(token)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return apperrors.NewTokenMalformed(errors.New("missing exp claim"))
	}
	if claims.ExpiresAt.Time.Before(now) {
		return apperrors.NewTokenExpired()
	}
	return nil
}

// RoleFromToken returns the role claim, or "" when the token cannot be read.
func RoleFromToken(token string) domain.Role {
	claims, err := DecodeClaims(token)
	if err != nil {
		return ""
	}
	return claims.Role
}

// TokenManager issues and verifies tokens for the sandbox API.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// GenerateToken builds and signs a JWT for the user.
func (tm *TokenManager) GenerateToken(user *domain.User) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates the signature and expiry and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
