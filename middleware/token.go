package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/campus_manager/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenClaims struct {
	UserID uuid.UUID
	Role   models.Role
}

func GenerateToken(secret string, user *models.User, expiry time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
		"exp":     time.Now().Add(expiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies a raw bearer token outside the jwtware middleware, as the
// websocket handshake needs.
func ParseToken(secret, raw string) (*TokenClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	idStr, _ := claims["user_id"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	return &TokenClaims{UserID: id, Role: models.Role(role)}, nil
}
