package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type CustomClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenSigner issues and parses HS256 tokens for the user service.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration

	mu          sync.RWMutex
	blacklisted map[string]time.Time
}

func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenSigner{
		secret:      []byte(secret),
		ttl:         ttl,
		blacklisted: make(map[string]time.Time),
	}
}

func (s *TokenSigner) GenerateToken(userID uint, role string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "RestaurantPlatform",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenSigner) ParseToken(tokenString string) (*CustomClaims, error) {
	if s.IsBlacklisted(tokenString) {
		return nil, errors.New("token has been revoked")
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Blacklist revokes a token until its natural expiry.
func (s *TokenSigner) Blacklist(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklisted[token] = time.Now().Add(s.ttl)
	s.cleanupLocked()
}

func (s *TokenSigner) IsBlacklisted(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiry, ok := s.blacklisted[token]
	return ok && time.Now().Before(expiry)
}

func (s *TokenSigner) cleanupLocked() {
	now := time.Now()
	for token, expiry := range s.blacklisted {
		if now.After(expiry) {
			delete(s.blacklisted, token)
		}
	}
}
