package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-notes-api/internal/config"
)

// TokenService defines the interface for token creation and validation.
// Implementations include JWTService (HS256) and PasetoService (v4.local).
type TokenService interface {
	CreateToken(userID uuid.UUID, ttl time.Duration) (string, error)
	// VerifyToken returns ErrInvalidSignature, ErrTokenExpired or
	// ErrMalformedToken on failure.
	VerifyToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims carried by an access token
type TokenClaims struct {
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewTokenService builds the TokenService selected by cfg.TokenFormat.
func NewTokenService(cfg config.AuthConfig) (TokenService, error) {
	switch cfg.TokenFormat {
	case config.TokenFormatJWT:
		return NewJWTService([]byte(cfg.SecretKey))
	case config.TokenFormatPaseto:
		return NewPasetoService([]byte(cfg.SecretKey))
	default:
		return nil, fmt.Errorf("unsupported token format %q", cfg.TokenFormat)
	}
}
