package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session handle. It carries no expiry: validity
// is decided by the registry alone.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs session ids into bearer tokens with HS256. Clients treat
// the result as opaque.
type TokenCodec struct {
	key    []byte
	issuer string
}

func NewTokenCodec(key, issuer string) *TokenCodec {
	return &TokenCodec{key: []byte(key), issuer: issuer}
}

// Encode signs the session id, role and identity.
func (c *TokenCodec) Encode(s Session) (string, error) {
	claims := Claims{
		Role: s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       s.ID,
			Subject:  s.Identity,
			Issuer:   c.issuer,
			IssuedAt: jwt.NewNumericDate(s.IssuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

// Decode validates the signature and issuer and returns the claims.
func (c *TokenCodec) Decode(token string) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	}, opts...)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return Claims{}, errors.New("invalid token")
	}
	return *claims, nil
}

// Sessions pairs a registry with the token codec. It is the only way the
// HTTP layer issues or looks up sessions.
type Sessions struct {
	registry Registry
	codec    *TokenCodec
}

func NewSessions(registry Registry, codec *TokenCodec) *Sessions {
	return &Sessions{registry: registry, codec: codec}
}

// Issue creates a session and returns its bearer token.
func (m *Sessions) Issue(ctx context.Context, role Role, identity string) (string, Session, error) {
	s, err := m.registry.Issue(ctx, role, identity)
	if err != nil {
		return "", Session{}, err
	}
	token, err := m.codec.Encode(s)
	if err != nil {
		_ = m.registry.Revoke(ctx, s.ID)
		return "", Session{}, err
	}
	return token, s, nil
}

// Resolve maps a bearer token to its session. Malformed, forged and unknown
// tokens yield ok=false with a nil error; err is set only when the registry
// itself fails.
func (m *Sessions) Resolve(ctx context.Context, token string) (Session, bool, error) {
	if token == "" {
		return Session{}, false, nil
	}
	claims, err := m.codec.Decode(token)
	if err != nil {
		return Session{}, false, nil
	}
	s, ok, err := m.registry.Resolve(ctx, claims.ID)
	if err != nil {
		return Session{}, false, fmt.Errorf("resolve session: %w", err)
	}
	if !ok || s.Role != claims.Role || s.Identity != claims.Subject {
		return Session{}, false, nil
	}
	return s, true, nil
}

// Revoke drops the session behind token. Unknown tokens are ignored.
func (m *Sessions) Revoke(ctx context.Context, token string) error {
	claims, err := m.codec.Decode(token)
	if err != nil {
		return nil
	}
	return m.registry.Revoke(ctx, claims.ID)
}

// Clear drops every session; called at shutdown.
func (m *Sessions) Clear(ctx context.Context) error {
	return m.registry.Clear(ctx)
}
