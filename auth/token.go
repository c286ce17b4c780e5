package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Issuer signs and validates session tokens carrying the verified user.
type Issuer struct {
	Secret []byte
	TTL    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{Secret: []byte(secret), TTL: ttl}
}

// Issue signs a token embedding the user claim and an expiry.
func (i *Issuer) Issue(user map[string]any) (string, error) {
	claims := jwt.MapClaims{
		"user": user,
		"exp":  time.Now().Add(i.TTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature and expiry and extracts the user claim. Every
// failure mode collapses into ErrInvalidToken.
func (i *Issuer) Validate(tokenString string) (map[string]any, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	user, ok := claims["user"].(map[string]any)
	if !ok {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// Identity is the caller resolved from a session token. A nil ID with
// Anonymous set means the anonymous fallback accepted the request.
type Identity struct {
	ID        *int64
	Anonymous bool
	User      map[string]any
}

// IdentityFromAuthorization resolves a bearer Authorization header. When
// allowAnonymous is set, a missing header, a malformed header, and an invalid
// token all degrade to the anonymous identity instead of rejecting.
func IdentityFromAuthorization(header string, issuer *Issuer, allowAnonymous bool) (Identity, error) {
	anon := Identity{Anonymous: true}

	header = strings.TrimSpace(header)
	if header == "" {
		if allowAnonymous {
			return anon, nil
		}
		return Identity{}, fmt.Errorf("%w: missing authorization header", ErrUnauthorized)
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		if allowAnonymous {
			return anon, nil
		}
		return Identity{}, fmt.Errorf("%w: invalid authorization header", ErrUnauthorized)
	}

	user, err := issuer.Validate(parts[1])
	if err != nil {
		if allowAnonymous {
			return anon, nil
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	identity := Identity{User: user}
	if raw, ok := user["id"]; ok {
		if id, ok := numericID(raw); ok {
			identity.ID = &id
		}
	}
	return identity, nil
}

// numericID tolerates the JSON float64 decoding of integer claims.
func numericID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
