package handler

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

// SessionSigner issues the HS256 session tokens consumed by the Auth
// middleware.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionSigner(secret string, ttl time.Duration) *SessionSigner {
	return &SessionSigner{secret: []byte(secret), ttl: ttl}
}

// Issue signs a session token for the given user.
func (s *SessionSigner) Issue(user *domain.LocalUser) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(domain.MapGroupsToRole(user.RawGroups)),
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
