package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"newsdesk/internal/config"
	"newsdesk/internal/model"
)

// AuthService issues and validates access tokens. Tokens are short-lived
// HS256 JWTs carrying the user id and role.
type AuthService struct {
	config *config.Config
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{config: cfg}
}

// GenerateAccessToken signs a token for the user.
func (s *AuthService) GenerateAccessToken(user *model.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// ParseAccessToken validates a token and returns the user id and role.
func (s *AuthService) ParseAccessToken(tokenString string) (int64, model.Role, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return 0, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", fmt.Errorf("invalid token claims")
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", fmt.Errorf("missing user_id claim")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = string(model.RoleUser)
	}

	return int64(userIDFloat), model.Role(role), nil
}

// ExpiresIn reports the access token lifetime in seconds, for login
// responses.
func (s *AuthService) ExpiresIn() int {
	return s.config.AccessTokenMaxAge
}
