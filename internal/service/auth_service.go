package service

import (
	"partyquest/internal/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService validates player tokens issued by the external auth provider.
// With an empty secret every request is treated as unauthenticated.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{jwtSecret: []byte(secret)}
}

func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

// ValidatePlayerToken validates an HS256 player JWT and returns its claims
func (s *AuthService) ValidatePlayerToken(tokenString string) (*model.PlayerClaims, error) {
	if !s.Enabled() {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &model.PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.PlayerClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssuePlayerToken signs a token for userID. Used by the seeder and tests;
// production tokens come from the auth provider.
func (s *AuthService) IssuePlayerToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &model.PlayerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
