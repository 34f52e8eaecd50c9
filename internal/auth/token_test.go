package auth

import (
	"strings"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-notes-api/internal/config"
)

// tamper flips one character in the middle of the segment at index seg.
func tamper(token string, seg int) string {
	parts := strings.Split(token, ".")
	b := []byte(parts[seg])
	i := len(b) / 2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	parts[seg] = string(b)
	return strings.Join(parts, ".")
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	_, err := NewJWTService([]byte("short"))
	assert.Error(t, err)
}

func TestJWTService_RoundTrip(t *testing.T) {
	tokens := newTestTokens(t)
	userID := uuid.New()

	token, err := tokens.CreateToken(userID, time.Hour)
	require.NoError(t, err)

	claims, err := tokens.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 2*time.Second)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt, 2*time.Second)
}

func TestJWTService_Failures(t *testing.T) {
	tokens := newTestTokens(t)
	other, err := NewJWTService([]byte(otherTestSecret))
	require.NoError(t, err)

	valid, err := tokens.CreateToken(uuid.New(), time.Hour)
	require.NoError(t, err)
	expired, err := tokens.CreateToken(uuid.New(), -time.Minute)
	require.NoError(t, err)
	foreign, err := other.CreateToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "expired", token: expired, want: ErrTokenExpired},
		{name: "foreign key", token: foreign, want: ErrInvalidSignature},
		{name: "tampered signature", token: tamper(valid, 2), want: ErrInvalidSignature},
		{name: "other algorithm", token: sign(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: exp}), want: ErrInvalidSignature},
		{name: "garbage", token: "not-a-token", want: ErrMalformedToken},
		{name: "empty", token: "", want: ErrMalformedToken},
		{name: "missing exp", token: sign(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: uuid.NewString()}), want: ErrMalformedToken},
		{name: "subject not a uuid", token: sign(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ada", ExpiresAt: exp}), want: ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := tokens.VerifyToken(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTService_TamperedPayload(t *testing.T) {
	tokens := newTestTokens(t)

	valid, err := tokens.CreateToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = tokens.VerifyToken(tamper(valid, 1))
	assert.Error(t, err)
}

func newTestPaseto(t *testing.T, key string) *PasetoService {
	t.Helper()
	svc, err := NewPasetoService([]byte(key))
	require.NoError(t, err)
	return svc
}

func TestNewPasetoService_KeyLength(t *testing.T) {
	_, err := NewPasetoService([]byte(testSecret + "x"))
	assert.Error(t, err)
}

func TestPasetoService_RoundTrip(t *testing.T) {
	tokens := newTestPaseto(t, testSecret)
	userID := uuid.New()

	token, err := tokens.CreateToken(userID, time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := tokens.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 2*time.Second)
}

func TestPasetoService_Failures(t *testing.T) {
	tokens := newTestPaseto(t, testSecret)
	other := newTestPaseto(t, otherTestSecret)

	valid, err := tokens.CreateToken(uuid.New(), time.Hour)
	require.NoError(t, err)
	expired, err := tokens.CreateToken(uuid.New(), -time.Minute)
	require.NoError(t, err)
	foreign, err := other.CreateToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	key, err := paseto.V4SymmetricKeyFromBytes([]byte(testSecret))
	require.NoError(t, err)
	badSubject := paseto.NewToken()
	badSubject.SetExpiration(time.Now().Add(time.Hour))
	badSubject.SetSubject("ada")
	noExpiry := paseto.NewToken()
	noExpiry.SetSubject(uuid.NewString())

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "expired", token: expired, want: ErrTokenExpired},
		{name: "foreign key", token: foreign, want: ErrInvalidSignature},
		{name: "tampered", token: tamper(valid, 2), want: ErrInvalidSignature},
		{name: "garbage", token: "not-a-token", want: ErrMalformedToken},
		{name: "jwt presented", token: "eyJhbGciOiJIUzI1NiJ9.e30.sig", want: ErrMalformedToken},
		{name: "subject not a uuid", token: badSubject.V4Encrypt(key, nil), want: ErrMalformedToken},
		{name: "missing exp", token: noExpiry.V4Encrypt(key, nil), want: ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := tokens.VerifyToken(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewTokenService(t *testing.T) {
	jwtSvc, err := NewTokenService(config.AuthConfig{SecretKey: testSecret, TokenFormat: config.TokenFormatJWT})
	require.NoError(t, err)
	assert.IsType(t, &JWTService{}, jwtSvc)

	pasetoSvc, err := NewTokenService(config.AuthConfig{SecretKey: testSecret, TokenFormat: config.TokenFormatPaseto})
	require.NoError(t, err)
	assert.IsType(t, &PasetoService{}, pasetoSvc)

	_, err = NewTokenService(config.AuthConfig{SecretKey: testSecret, TokenFormat: "saml"})
	assert.Error(t, err)
}
