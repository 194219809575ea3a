package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateAdminToken creates a signed JWT for an admin actor. Tokens are
// normally issued by the platform's auth service; this exists for tooling
// and tests.
func GenerateAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	claims := &adminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAdminToken validates the token and returns the admin subject.
func ParseAdminToken(secret, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*adminClaims); ok && token.Valid && claims.Role == "admin" {
		return claims.Subject, nil
	}

	return "", jwt.ErrTokenInvalidClaims
}
