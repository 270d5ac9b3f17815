// Package auth turns bearer tokens into the Principal every order operation takes.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"seafood-order-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const issuer = "seafood-order-service"

// Claims carries the user id and role flag
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 tokens
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a new token manager
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// GenerateToken signs a token for userID with role
func (m *Manager) GenerateToken(userID int64, role models.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies tokenString and returns the caller it names. A token
// without user_id falls back to a numeric sub; an empty role means customer.
func (m *Manager) ParseToken(tokenString string) (models.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Principal{}, ErrTokenExpired
		}
		return models.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Principal{}, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == 0 && claims.Subject != "" {
		userID, err = strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return models.Principal{}, ErrInvalidToken
		}
	}
	if userID <= 0 {
		return models.Principal{}, ErrInvalidToken
	}

	role := models.Role(claims.Role)
	switch role {
	case "":
		role = models.RoleCustomer
	case models.RoleCustomer, models.RoleWholesale, models.RoleAdmin:
	default:
		return models.Principal{}, ErrInvalidToken
	}

	return models.Principal{UserID: userID, Role: role}, nil
}
