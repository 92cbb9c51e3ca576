// Package auth issues and verifies wallet session tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/firecat-notes/firecat/internal/common"
)

// Claims carries the wallet user behind a session. The login session key, if
// any, is the token id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Pubkey   string `json:"pubkey"`
}

// Subject is what a valid token identifies.
type Subject struct {
	Username  string
	Pubkey    string
	SessionID string
}

func GenerateToken(sub Subject, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sub.SessionID,
			Subject:   sub.Pubkey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Username: sub.Username,
		Pubkey:   sub.Pubkey,
	})

	return token.SignedString(secretKey)
}

// ParseToken validates tokenString and returns its subject. Expired tokens
// yield common.ErrTokenExpired, anything else unusable common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Subject, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Subject{}, common.ErrTokenExpired
		}
		return Subject{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.Pubkey == "" || claims.Username == "" {
		return Subject{}, common.ErrInvalidToken
	}

	return Subject{Username: claims.Username, Pubkey: claims.Pubkey, SessionID: claims.ID}, nil
}
