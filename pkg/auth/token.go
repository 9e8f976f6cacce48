// Package auth mints and verifies the HS256 access tokens that identify
// customers, providers and admins.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

// clockSkew tolerates small drift between the account service and us.
const clockSkew = 30 * time.Second

var (
	ErrTokenExpired = errors.New("access token expired")
	ErrTokenInvalid = errors.New("access token invalid")
)

// Claims is the token body. The subject carries the actor id; provider_id is
// present only on provider tokens.
type Claims struct {
	Role       enums.ActorRole `json:"role"`
	ProviderID *uuid.UUID      `json:"provider_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the caller identity services take.
func (c *Claims) Actor() (types.Actor, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil {
		return types.Actor{}, fmt.Errorf("%w: subject is not a user id", ErrTokenInvalid)
	}
	if !c.Role.IsValid() {
		return types.Actor{}, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, c.Role)
	}
	if (c.Role == enums.ActorRoleProvider) != (c.ProviderID != nil) {
		return types.Actor{}, fmt.Errorf("%w: provider_id must accompany the provider role only", ErrTokenInvalid)
	}
	return types.Actor{ID: id, Role: c.Role, ProviderID: c.ProviderID}, nil
}

// Mint signs a token for actor valid for cfg.ExpirationMinutes from now.
// Production tokens come from the account service; this serves tooling and tests.
func Mint(cfg config.JWTConfig, now time.Time, actor types.Actor) (string, error) {
	if cfg.Secret == "" || cfg.Issuer == "" {
		return "", errors.New("jwt secret and issuer are required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", errors.New("jwt expiration minutes must be positive")
	}
	claims := &Claims{
		Role:       actor.Role,
		ProviderID: actor.ProviderID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
	}
	if _, err := claims.Actor(); err != nil {
		return "", err
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// Verify checks signature, issuer and expiry and returns the caller. Every
// failure wraps ErrTokenExpired or ErrTokenInvalid.
func Verify(cfg config.JWTConfig, raw string) (types.Actor, error) {
	if cfg.Secret == "" {
		return types.Actor{}, errors.New("jwt secret is required")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return types.Actor{}, ErrTokenExpired
	case err != nil:
		return types.Actor{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims.Actor()
}
