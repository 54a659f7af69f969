package utils

import (
	"errors"
	"fmt"
	"time"

	"coordy/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// ParseToken verifies an HS256 token issued by the identity provider.
// issuer is checked when not empty.
func ParseToken(tokenString, secret, issuer string) (*models.ClientClaims, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &models.ClientClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GenerateToken signs claims for ttl. The identity provider mints real
// tokens; this serves local tooling and tests.
func GenerateToken(clientID, role, secret, issuer string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT_SECRET not configured")
	}
	now := time.Now()
	claims := models.ClientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
