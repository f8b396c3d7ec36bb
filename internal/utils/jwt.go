// Package utils holds the token and password primitives used by the
// credentials service.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type markers.  An access token can never be presented as a refresh
// token (or the other way round) even if both secrets were configured equal.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails parsing, signature,
// expiry or type checks.  Callers must not distinguish between causes.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of an access token: the user id as subject
// plus the display name and email.
type AccessClaims struct {
	jwt.RegisteredClaims
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Type     string `json:"typ"`
}

// RefreshClaims carries only the user id.  The random ID (jti) makes every
// issued refresh token distinct, so a superseded token never equals the
// stored one even when both were minted within the same second.
type RefreshClaims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// AccessToken is a signed access JWT and the instant it stops verifying.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is handed to the client once.  Only HashRefreshRaw(Raw)
// is persisted on the user record.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// NewAccessToken builds and signs an HS256 JWT for a user.
func NewAccessToken(secret, userID, fullName, email string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		FullName: fullName,
		Email:    email,
		Type:     TokenTypeAccess,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken builds and signs an HS256 JWT carrying only the user id.
func NewRefreshToken(secret, userID string, ttl time.Duration) (RefreshToken, error) {
	jti, err := randomHex(16)
	if err != nil {
		return RefreshToken{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type: TokenTypeRefresh,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature, expiry and type of an access token.
func ParseAccessToken(secret, raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parse(secret, raw, claims); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefreshToken verifies signature, expiry and type of a refresh token.
func ParseRefreshToken(secret, raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parse(secret, raw, claims); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parse(secret, raw string, claims jwt.Claims) error {
	if raw == "" {
		return ErrInvalidToken
	}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashRefreshRaw is the hex SHA-256 of a raw refresh token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
