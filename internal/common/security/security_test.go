package security

import (
	"context"
	"testing"
	"time"

	"contest_tracker/internal/platform/config"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	config.AppConfig = &config.Config{JWTKey: []byte("test-secret"), JWTExp: time.Hour}
	InitJWT()

	tokenString, err := GenerateToken("u-1", "regular")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	token, err := TokenAuth.Decode(tokenString)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		t.Fatalf("AsMap: %v", err)
	}
	if id, err := GetUserIDFromClaims(claims); err != nil || id != "u-1" {
		t.Fatalf("user id = %q, %v", id, err)
	}
	if role, err := GetUserRoleFromClaims(claims); err != nil || role != "regular" {
		t.Fatalf("role = %q, %v", role, err)
	}
}

func TestClaimsMissing(t *testing.T) {
	if _, err := GetUserIDFromClaims(map[string]interface{}{}); err == nil {
		t.Fatalf("expected error for missing user_id")
	}
	if _, err := GetUserRoleFromClaims(map[string]interface{}{"role": 3}); err == nil {
		t.Fatalf("expected error for non-string role")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPasswordHash("hunter2", hash) {
		t.Fatalf("expected password to match")
	}
	if CheckPasswordHash("hunter3", hash) {
		t.Fatalf("expected mismatch")
	}
}
