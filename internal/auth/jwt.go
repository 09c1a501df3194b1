package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

const tokenIssuer = "hogar"

// JWTManager signs and checks HS256 session tokens.
type JWTManager struct {
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// Claims carry both identifiers a user can appear under in household ids.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() identity.User {
	return identity.User{UID: c.UserID, Email: c.Email}
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		key: []byte(secret),
		ttl: ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Generate issues a token for user valid for the manager's ttl.
func (m *JWTManager) Generate(user *models.User) (string, error) {
	issued := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token for %s: %w", user.ID, err)
	}
	return signed, nil
}

// Validate returns the claims of a token this manager signed. An empty token is
// ErrMissingToken; any other failure wraps ErrInvalidToken.
func (m *JWTManager) Validate(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(raw, claims, m.signingKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *JWTManager) signingKey(*jwt.Token) (any, error) {
	return m.key, nil
}
