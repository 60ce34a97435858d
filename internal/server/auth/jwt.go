// Package auth issues and parses the bearer tokens carried by API requests.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the authenticated principal next to the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

func GenerateToken(p access.Principal, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: p.ID,
		Role:   string(p.Role),
	})

	return token.SignedString(secretKey)
}

// ParsePrincipal validates tokenString and returns the principal it names.
// An expired token yields common.ErrTokenExpired; any other failure,
// including an unknown role, yields common.ErrInvalidToken.
func ParsePrincipal(tokenString string, secretKey []byte) (access.Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return access.Principal{}, common.ErrTokenExpired
		}
		return access.Principal{}, common.ErrInvalidToken
	}
	if !token.Valid {
		return access.Principal{}, common.ErrInvalidToken
	}

	p := access.Principal{ID: claims.UserID, Role: access.Role(claims.Role)}
	if p.ID == "" || !p.Role.Valid() {
		return access.Principal{}, common.ErrInvalidToken
	}
	return p, nil
}
