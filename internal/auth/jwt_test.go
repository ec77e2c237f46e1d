package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTManager_GenerateAndParse(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour)
	token, err := manager.GenerateToken("user-1", ScopePlacesRead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "user-1" || claims.Issuer != Issuer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.HasScope(ScopePlacesRead) || claims.HasScope(ScopePlacesRecommend) {
		t.Fatalf("unexpected scopes: %v", claims.Scopes)
	}

	if _, err := manager.ParseToken(token + "tampered"); err == nil {
		t.Fatalf("expected parse error for tampered token")
	}
	if _, err := NewJWTManager("other", time.Hour).ParseToken(token); err == nil {
		t.Fatalf("expected parse error for foreign secret")
	}
}

func TestJWTManager_Validation(t *testing.T) {
	if _, err := NewJWTManager("", time.Hour).GenerateToken("user"); err == nil {
		t.Fatalf("expected error when secret is empty")
	}
	if _, err := NewJWTManager("secret", time.Hour).GenerateToken(""); err == nil {
		t.Fatalf("expected error when subject is empty")
	}
}

func TestJWTManager_RejectsForeignIssuerAndExpired(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	signed, err := foreign.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(signed); err == nil {
		t.Fatalf("expected foreign issuer to be rejected")
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err = expired.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(signed); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestNewJWTManager_DefaultTTL(t *testing.T) {
	if m := NewJWTManager("secret", 0); m.ttl != 24*time.Hour {
		t.Fatalf("expected default ttl, got %s", m.ttl)
	}
}
