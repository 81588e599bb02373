package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DatagramClaims bind a UDP hello to an authenticated connection. The
// token only proves which connection a datagram sender belongs to; it
// carries no account authority.
type DatagramClaims struct {
	ConnectionID string `json:"connection_id"`
	jwt.RegisteredClaims
}

// TokenConfig holds signing parameters for datagram tokens.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// GenerateDatagramToken creates a short-lived HS256 token for connID.
func GenerateDatagramToken(cfg *TokenConfig, connID string) (string, error) {
	now := time.Now()
	claims := DatagramClaims{
		ConnectionID: connID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateDatagramToken parses a datagram token and returns the
// connection id it was issued for.
func ValidateDatagramToken(cfg *TokenConfig, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DatagramClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*DatagramClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return "", fmt.Errorf("invalid issuer")
	}
	if claims.ConnectionID == "" {
		return "", fmt.Errorf("missing connection id")
	}
	return claims.ConnectionID, nil
}
