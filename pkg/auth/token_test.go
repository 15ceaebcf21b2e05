package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alifmarket/marketplace-backend/pkg/config"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "alif-market",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	payload := AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "buyer@example.com",
		Role:   enums.RoleUser,
	}

	signed, err := MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("MintAccessToken returned unexpected error: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("ParseAccessToken returned unexpected error: %v", err)
	}
	if claims.UserID != payload.UserID {
		t.Fatalf("user id mismatch: got %s, want %s", claims.UserID, payload.UserID)
	}
	if claims.Email != payload.Email {
		t.Fatalf("email mismatch: got %q", claims.Email)
	}
	if claims.Role != enums.RoleUser {
		t.Fatalf("role mismatch: got %q", claims.Role)
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "seller@example.com",
		Role:   enums.RoleUser,
	})
	if err != nil {
		t.Fatalf("MintAccessToken returned unexpected error: %v", err)
	}

	bad := cfg
	bad.Secret = "other-secret"
	if _, err := ParseAccessToken(bad, signed); err == nil {
		t.Fatal("expected parse with wrong secret to fail")
	}
}

func TestMintAccessToken_InvalidRole(t *testing.T) {
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.Role("superuser"),
	}); err == nil {
		t.Fatal("expected invalid role to be rejected")
	}
}
