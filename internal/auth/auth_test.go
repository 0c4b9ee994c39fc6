package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"evento/internal/config"
)

func newTestService(t *testing.T, expiration time.Duration) *Service {
	t.Helper()
	return NewService(&config.JWTConfig{Secret: "test-secret", Expiration: expiration})
}

func TestHashPassword(t *testing.T) {
	svc := newTestService(t, time.Hour)

	password := "testpassword123"
	hash, err := svc.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == "" || hash == password {
		t.Errorf("unexpected hash %q", hash)
	}

	if err := svc.VerifyPassword(hash, password); err != nil {
		t.Errorf("Should verify correct password, got error: %v", err)
	}
	if err := svc.VerifyPassword(hash, "wrongpassword"); err == nil {
		t.Error("Should not verify incorrect password")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t, time.Hour)
	tenantID := int64(42)

	token, expiresAt, err := svc.GenerateToken(Subject{UserID: 7, Email: "client@example.com", Tipo: "cliente", TenantID: &tenantID})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("expiry %v is not in the future", expiresAt)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != 7 || claims.Email != "client@example.com" || claims.Tipo != "cliente" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.TenantID == nil || *claims.TenantID != tenantID {
		t.Errorf("Expected tenant %d, got %v", tenantID, claims.TenantID)
	}
	if claims.ID == "" {
		t.Error("token should carry a JTI")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newTestService(t, -time.Minute)

	token, _, err := svc.GenerateToken(Subject{UserID: 1, Email: "a@example.com", Tipo: "participante"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateToken_OtherKey(t *testing.T) {
	a := newTestService(t, time.Hour)
	b := newTestService(t, time.Hour)

	token, _, err := a.GenerateToken(Subject{UserID: 1, Email: "a@example.com", Tipo: "admin"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Error("token signed by another key must be rejected")
	}
	if _, err := a.ValidateToken("not-a-token"); err == nil {
		t.Error("garbage must be rejected")
	}
}

func TestLoadKeysFromPEM(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}
	secret := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))

	a := NewService(&config.JWTConfig{Secret: secret, Expiration: time.Hour})
	b := NewService(&config.JWTConfig{Secret: secret, Expiration: time.Hour})

	token, _, err := a.GenerateToken(Subject{UserID: 3, Email: "x@example.com", Tipo: "admin"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if _, err := b.ValidateToken(token); err != nil {
		t.Errorf("services sharing a PEM key should accept each other's tokens: %v", err)
	}
}
