// internal/auth/jwt_test.go
package auth

import (
	"testing"
	"time"

	"commission-engine/internal/config"
)

func testService(expiresIn time.Duration) *TokenService {
	return NewTokenService(config.Config{JWTSecret: "test-secret", JWTExpiresIn: expiresIn})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := testService(time.Hour)

	token, err := svc.GenerateToken(9, RoleSupplier)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.ActorID != 9 || claims.Role != RoleSupplier {
		t.Errorf("claims = %+v, want actor 9 supplier", claims)
	}
}

func TestTokenUnknownRole(t *testing.T) {
	if _, err := testService(time.Hour).GenerateToken(1, "superuser"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestTokenExpired(t *testing.T) {
	svc := testService(-time.Minute)

	token, err := svc.GenerateToken(1, RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := svc.ParseToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := testService(time.Hour).GenerateToken(1, RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	other := NewTokenService(config.Config{JWTSecret: "different", JWTExpiresIn: time.Hour})
	if _, err := other.ParseToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}
