package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"evento/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// JWTClaims represents the claims in a JWT token
type JWTClaims struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Tipo     string `json:"tipo"`
	TenantID *int64 `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// Service handles authentication operations
type Service struct {
	privateKey    *ecdsa.PrivateKey
	publicKey     *ecdsa.PublicKey
	jwtExpiration time.Duration
}

// NewService creates a new authentication service
func NewService(cfg *config.JWTConfig) *Service {
	privateKey, publicKey := loadOrGenerateKeys(cfg.Secret)
	return &Service{
		privateKey:    privateKey,
		publicKey:     publicKey,
		jwtExpiration: cfg.Expiration,
	}
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// VerifyPassword verifies a password against a hash
func (s *Service) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Subject is the identity a token is issued for
type Subject struct {
	UserID   int64
	Email    string
	Tipo     string
	TenantID *int64
}

// GenerateToken issues a signed access token and returns it with its expiry
func (s *Service) GenerateToken(sub Subject) (string, time.Time, error) {
	jti, err := GenerateRandomToken(16)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate JTI: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtExpiration)
	claims := JWTClaims{
		UserID:   sub.UserID,
		Email:    sub.Email,
		Tipo:     sub.Tipo,
		TenantID: sub.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateRandomToken generates a URL-safe random token
func GenerateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// loadOrGenerateKeys loads an ECDSA key from a PEM secret or generates an
// ephemeral one; tokens signed with an ephemeral key do not survive a restart.
func loadOrGenerateKeys(secret string) (*ecdsa.PrivateKey, *ecdsa.PublicKey) {
	if block, _ := pem.Decode([]byte(secret)); block != nil {
		if privateKey, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
			return privateKey, &privateKey.PublicKey
		}
	}

	slog.Warn("JWT_SECRET is not a PEM encoded EC key, using an ephemeral signing key")
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ECDSA key: %v", err))
	}
	return privateKey, &privateKey.PublicKey
}
