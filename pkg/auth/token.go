package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails signature, expiry or
// claim validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the identity asserted by the identity service.
// Subject holds the holder UUID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens issued by the identity service.
type TokenVerifier struct {
	key    []byte
	parser *jwt.Parser
}

// NewTokenVerifier returns a verifier for tokens signed with key.
func NewTokenVerifier(key []byte) *TokenVerifier {
	return &TokenVerifier{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses raw and returns the identity it asserts.
func (v *TokenVerifier) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	holderID, err := uuid.Parse(claims.Subject)
	if err != nil || holderID == uuid.Nil {
		return Identity{}, fmt.Errorf("%w: subject is not a holder id", ErrInvalidToken)
	}
	return Identity{HolderID: holderID, Role: claims.Role}, nil
}

// Sign mints a token for id valid for ttl. The identity service owns issuing
// in production; this exists for lendctl and tests.
func (v *TokenVerifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.HolderID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
