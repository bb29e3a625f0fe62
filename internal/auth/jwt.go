// Package auth authenticates the messaging gateways that post chat events to
// the webhook.
//
// End users are never authenticated here: the gateway vouches for the user id
// inside each event. What we check is that the request comes from a gateway
// we issued a token to.
//
// GATEWAY TOKEN FLOW:
//  1. An operator runs `listbot token --gateway telegram` on a host that knows
//     GATEWAY_SECRET, and configures the gateway with the printed token.
//  2. The gateway sends it on every call as "Authorization: Bearer <jwt>".
//  3. RequireGateway validates it and stores the gateway name in the request
//     context.
//
// The token is an HS256 JWT whose subject is the gateway name. The signature
// is verified with the shared secret alone, no database lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "sharedlist"

	// DefaultTokenLifetime is how long a gateway token from Generate lasts.
	DefaultTokenLifetime = 90 * 24 * time.Hour
)

// TokenService signs and verifies gateway tokens with one HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: GATEWAY_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: gateway secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate issues a token for gateway valid for DefaultTokenLifetime.
func (s *TokenService) Generate(gateway string) (string, error) {
	return s.GenerateWithDuration(gateway, DefaultTokenLifetime)
}

// GenerateWithDuration issues a token for gateway valid for d.
func (s *TokenService) GenerateWithDuration(gateway string, d time.Duration) (string, error) {
	if gateway == "" {
		return "", errors.New("auth: gateway name is required")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   gateway,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate verifies tokenStr and returns the gateway name it was issued to.
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, a token signed with "none" (or with RS256
// using our HMAC secret as a "public key") could be accepted.
// jwt.WithValidMethods rejects anything but HS256.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
