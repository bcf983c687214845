package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token has expired")
	ErrInvalidIdentity = errors.New("identity needs a user id and a known role")
)

// Identity is who an access token speaks for: a buyer or a store admin.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func (id Identity) valid() bool {
	return id.UserID != "" && (id.Role == user.RoleCustomer || id.Role == user.RoleAdmin)
}

// Claims is the access-token payload shared with the storefront's auth
// service. The field names are part of that contract.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

func (c *Claims) IsAdmin() bool {
	return c.Role == user.RoleAdmin
}

type Option func(*JWTService)

// WithIssuer stamps issued tokens with iss and rejects tokens from any other
// issuer.
func WithIssuer(iss string) Option {
	return func(s *JWTService) { s.issuer = iss }
}

func WithClock(now func() time.Time) Option {
	return func(s *JWTService) { s.now = now }
}

// JWTService signs and verifies HS256 access tokens. The secret is shared
// with the auth service that normally issues them.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewJWTService(secret string, ttl time.Duration, opts ...Option) *JWTService {
	s := &JWTService{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs an access token for id, returning it with its expiry.
func (s *JWTService) Issue(id Identity) (string, time.Time, error) {
	if !id.valid() {
		return "", time.Time{}, ErrInvalidIdentity
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueFor signs a token for a stored user, taking the role from the
// directory rather than from the caller.
func (s *JWTService) IssueFor(ctx context.Context, users user.Directory, userID string) (string, time.Time, error) {
	u, err := users.FindUser(ctx, userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("look up user %s: %w", userID, err)
	}
	return s.Issue(Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
}

// Verify checks signature, expiry and issuer, and that the token names a
// user with a role this service understands.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	if err != nil || !claims.Identity().valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) TTL() time.Duration {
	return s.ttl
}
