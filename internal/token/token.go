// Package token issues and verifies signed, time-limited identity tokens.
// Tokens are stateless JWTs signed with a server-held symmetric secret;
// expiry is the only invalidation mechanism (there is no revocation list,
// so logout is client-side token discard).
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prn-tf/darius-projects/internal/domain"
)

// Payload is the identity a token carries.
type Payload struct {
	// SubjectID is the user id the token was issued for.
	SubjectID string

	// Email is the user's email at issue time.
	Email string

	// Role is the user's role at issue time. Authoritative role checks
	// re-read the store; this is a hint for non-authoritative display.
	Role domain.Role

	// IssuedAt is when the token was issued.
	IssuedAt time.Time

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time
}

// claims is the JWT claim set for an identity token.
type claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies identity tokens.
// It is a pure function of the secret, the payload and the clock, and is
// safe for concurrent use.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a token Service. The ttl bounds how long an issued
// token remains valid.
func NewService(secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for the given subject.
func (s *Service) Issue(subjectID, email string, role domain.Role) (string, error) {
	now := s.now().UTC()

	c := claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its payload.
// Returns domain.ErrTokenExpired for expired tokens and domain.ErrInvalidToken
// for anything malformed or with a bad signature.
func (s *Service) Verify(tokenStr string) (*Payload, error) {
	c := &claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	if !tok.Valid {
		return nil, domain.ErrInvalidToken
	}

	return payloadFromClaims(c), nil
}

// DecodeUnsafe decodes a token without verifying its signature.
// Returns nil if the token cannot be parsed. The result must never be used
// for authorization; it exists for non-authoritative inspection only.
func (s *Service) DecodeUnsafe(tokenStr string) *Payload {
	c := &claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, c); err != nil {
		return nil
	}
	return payloadFromClaims(c)
}

func payloadFromClaims(c *claims) *Payload {
	p := &Payload{
		SubjectID: c.Subject,
		Email:     c.Email,
		Role:      c.Role,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
