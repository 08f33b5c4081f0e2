package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestOpaqueManager_AcceptsAnyNonEmptyToken(t *testing.T) {
	tm := NewTokenManager("")
	if _, ok := tm.(OpaqueTokenManager); !ok {
		t.Fatalf("empty secret should select the opaque manager, got %T", tm)
	}

	if err := tm.Validate("anything-goes"); err != nil {
		t.Fatalf("opaque token rejected: %v", err)
	}
	if err := tm.Validate(""); err == nil {
		t.Fatalf("empty token must be rejected")
	}
}

func TestJWTManager_ValidatesSignature(t *testing.T) {
	tm := NewTokenManager("secret")

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if err := tm.Validate(signed); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if err := tm.Validate(wrongKey); err == nil {
		t.Fatalf("token signed with the wrong key must be rejected")
	}

	if err := tm.Validate("not-a-jwt"); err == nil {
		t.Fatalf("malformed token must be rejected")
	}
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("secret")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if err := tm.Validate(expired); err == nil {
		t.Fatalf("expired token must be rejected")
	}
}
