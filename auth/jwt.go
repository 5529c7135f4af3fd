package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courtside/scorecast/logger"
)

// JWTValidator verifies HS256-signed tokens.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator returns a validator keyed with secret.
func NewJWTValidator(secret string) (*JWTValidator, error) {
	if secret == "" {
		return nil, errors.New("jwt validator requires a signing secret")
	}
	return &JWTValidator{secret: []byte(secret)}, nil
}

// Validate parses and verifies the token. Expiry and not-before claims are
// enforced by the parser.
func (v *JWTValidator) Validate(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		logger.DebugContext(ctx, "Token rejected", "error", err)
		return false
	}
	return parsed.Valid
}

// Sign issues a token valid for ttl, for operator tooling and tests.
func (v *JWTValidator) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "scorecast",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
