// Package auth answers one question for the control path: does this token
// authorize game control commands. The Validator contract is deliberately a
// boolean; callers map a rejection to a client-visible Unauthorized error
// with no further detail.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/courtside/scorecast/config"
)

// Validator reports whether a client token is acceptable.
type Validator interface {
	Validate(ctx context.Context, token string) bool
}

// StaticValidator accepts exactly one shared token.
type StaticValidator struct {
	token []byte
}

// NewStaticValidator returns a validator for the given shared token. An
// empty token rejects everything.
func NewStaticValidator(token string) *StaticValidator {
	return &StaticValidator{token: []byte(token)}
}

// Validate compares in constant time.
func (v *StaticValidator) Validate(_ context.Context, token string) bool {
	if len(v.token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(v.token, []byte(token)) == 1
}

// NewValidator builds the validator selected by auth.mode.
func NewValidator(cfg *config.Config) (Validator, error) {
	switch cfg.Auth.Mode {
	case config.AuthStatic:
		return NewStaticValidator(cfg.Auth.StaticToken), nil
	case config.AuthJWT:
		return NewJWTValidator(cfg.Auth.JWTSecret)
	default:
		return nil, fmt.Errorf("unknown auth.mode %q", cfg.Auth.Mode)
	}
}
