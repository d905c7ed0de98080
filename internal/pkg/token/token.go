// Package token issues and validates the HS256 tokens that identify
// callers of the HTTP surface.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"meta-ads/internal/pkg/errs"
)

var (
	ErrInvalidToken = errs.New("invalid token")
	ErrExpiredToken = errs.New("token expired")
)

// RoleSettler marks an operator allowed to trigger settlements on behalf of
// the platform.
const RoleSettler = "settler"

// Claims carry the caller account in the subject.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Account returns the caller account named by the token.
func (c *Claims) Account() string {
	return c.Subject
}

// Service signs and verifies caller tokens with one shared HS256 secret.
type Service struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewService returns a Service whose tokens expire after tokenDuration.
func NewService(secretKey string, tokenDuration time.Duration) *Service {
	return &Service{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// GenerateToken issues a token for account. role is empty for ordinary
// callers and RoleSettler for settlement operators.
func (s *Service) GenerateToken(account, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken verifies the signature and expiry of tokenString and
// returns its claims. Expired tokens yield ErrExpiredToken, anything else
// that fails yields ErrInvalidToken.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errs.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
