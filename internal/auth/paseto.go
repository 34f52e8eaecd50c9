package auth

import (
	"fmt"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

const pasetoLocalPrefix = "v4.local."

// PasetoService handles PASETO token creation and validation
// Uses v4.local (symmetric encryption with XChaCha20-Poly1305)
type PasetoService struct {
	symmetricKey paseto.V4SymmetricKey
}

func NewPasetoService(symmetricKey []byte) (*PasetoService, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &PasetoService{
		symmetricKey: key,
	}, nil
}

func (s *PasetoService) CreateToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(ttl))
	token.SetSubject(userID.String())

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// VerifyToken decrypts the token and checks expiry itself so each failure
// maps onto exactly one of the token error tags.
func (s *PasetoService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	if !strings.HasPrefix(tokenStr, pasetoLocalPrefix) {
		return nil, ErrMalformedToken
	}

	parser := paseto.NewParserWithoutExpiryCheck()

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		// Authenticated decryption failed: wrong key or altered bytes.
		return nil, ErrInvalidSignature
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrMalformedToken
	}
	if !time.Now().Before(expiresAt) {
		return nil, ErrTokenExpired
	}

	subject, err := token.GetSubject()
	if err != nil {
		return nil, ErrMalformedToken
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrMalformedToken
	}

	issuedAt, _ := token.GetIssuedAt()

	return &TokenClaims{
		UserID:    userID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
