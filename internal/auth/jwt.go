// Package auth verifies the access tokens issued by the store's auth service.
//
// Tokens are HMAC-signed JWTs whose subject is the user id. The verifier is
// used by the direct database gateway, which has no auth service to ask.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/JonMunkholm/partlog/internal/model"
)

var (
	ErrMissingSecret = errors.New("auth: jwt secret is required")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Claims are the token claims the application reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks token signatures with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify parses raw and returns the user it was issued to. Expired tokens,
// non-HMAC algorithms and subjects that are not UUIDs are rejected.
func (v *Verifier) Verify(raw string) (*model.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	tok, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(v.now()) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	sub := strings.TrimSpace(claims.Subject)
	if _, err := uuid.Parse(sub); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	return &model.User{ID: sub, Email: claims.Email}, nil
}

// Sign issues a token for user valid for ttl. It is used for local
// development and tests; production tokens come from the auth service.
func (v *Verifier) Sign(user model.User, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
