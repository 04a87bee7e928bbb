// internal/auth/jwt.go
package auth

import (
	"errors"
	"log/slog"
	"time"

	"commission-engine/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin    = "admin"
	RoleSupplier = "supplier"
)

// Claims carried by an engine token: who is acting and in which role.
// For suppliers the actor id is the supplier id.
type Claims struct {
	ActorID int64
	Role    string
}

type TokenService struct {
	secretKey []byte
	expiresIn time.Duration
}

func NewTokenService(cfg config.Config) *TokenService {
	return &TokenService{
		secretKey: []byte(cfg.JWTSecret),
		expiresIn: cfg.JWTExpiresIn,
	}
}

func (s *TokenService) GenerateToken(actorID int64, role string) (string, error) {
	if role != RoleAdmin && role != RoleSupplier {
		return "", errors.New("unknown role")
	}
	expTime := time.Now().Add(s.expiresIn)
	claims := jwt.MapClaims{
		"actor_id": actorID,
		"role":     role,
		"exp":      expTime.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(s.secretKey)
	if err == nil {
		slog.Info("JWT generated", "actor_id", actorID, "role", role, "expires_at", expTime.Format(time.RFC3339))
	}
	return tokenStr, err
}

func (s *TokenService) ParseToken(tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secretKey, nil
	})
	if err != nil {
		return Claims{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("invalid token claims")
	}

	actorIDFloat, ok := claims["actor_id"].(float64)
	if !ok || int64(actorIDFloat) <= 0 {
		return Claims{}, errors.New("invalid actor_id")
	}
	role, ok := claims["role"].(string)
	if !ok || (role != RoleAdmin && role != RoleSupplier) {
		return Claims{}, errors.New("invalid role")
	}

	return Claims{ActorID: int64(actorIDFloat), Role: role}, nil
}
