package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/redmonkez12/go-notes-api/internal/logging"
	"github.com/redmonkez12/go-notes-api/internal/user"
)

const (
	maxNameLength     = 100
	maxEmailLength    = 254
	minPasswordLength = 8
	maxPasswordLength = 128

	tokenTypeBearer = "bearer"

	// dummyPassword is hashed once and verified against when a login names an
	// unknown email, so both failure paths cost one hash computation.
	dummyPassword = "notes-api-dummy-password"
)

var tracer = otel.Tracer("github.com/redmonkez12/go-notes-api/internal/auth")

// UserStore is the credential store the gateway reads and writes.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	Create(ctx context.Context, u *user.User) error
}

// RegisterInput carries the fields accepted at registration
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthToken is returned by a successful login
type AuthToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// Service handles authentication business logic
type Service struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   TokenService
	logger   *logging.Logger
	tokenTTL time.Duration
	now      func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

func NewService(
	users UserStore,
	hasher PasswordHasher,
	tokens TokenService,
	logger *logging.Logger,
	tokenTTL time.Duration,
) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Registration and login both look users up by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates the input and creates a new account.
// Returns ErrValidation, ErrEmailTaken, ErrStorage or ErrInternal.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)

	if err := validateRegistration(name, email, in.Password); err != nil {
		return nil, fail(span, err)
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fail(span, ErrEmailTaken)
	case !errors.Is(err, user.ErrNotFound):
		s.logger.Error("failed to look up user for registration", "error", err)
		return nil, fail(span, ErrStorage)
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, fail(span, ErrInternal)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	newUser := &user.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			// Lost a race with a concurrent registration of the same address.
			return nil, fail(span, ErrEmailTaken)
		}
		s.logger.Error("failed to create user", "error", err)
		return nil, fail(span, ErrStorage)
	}

	span.SetAttributes(attribute.String("user.id", newUser.ID.String()))

	return newUser.Public(), nil
}

// Login checks credentials and issues an access token.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthToken, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fail(span, ErrInvalidCredentials)
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.burnDummyVerify(ctx, password)
			return nil, fail(span, ErrInvalidCredentials)
		}
		s.logger.Error("failed to look up user for login", "error", err)
		return nil, fail(span, ErrStorage)
	}

	ok, err := s.hasher.Verify(ctx, password, existingUser.PasswordHash)
	if err != nil {
		s.logger.Error("failed to verify password", "error", err)
		return nil, fail(span, ErrInternal)
	}
	if !ok {
		return nil, fail(span, ErrInvalidCredentials)
	}

	token, err := s.tokens.CreateToken(existingUser.ID, s.tokenTTL)
	if err != nil {
		s.logger.Error("failed to create access token", "error", err)
		return nil, fail(span, ErrInternal)
	}

	span.SetAttributes(attribute.String("user.id", existingUser.ID.String()))

	return &AuthToken{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.tokenTTL / time.Second),
	}, nil
}

// ResolveCurrentUser maps a bearer token to the account it was issued for.
// Every token or lookup failure other than storage returns ErrUnauthenticated.
func (s *Service) ResolveCurrentUser(ctx context.Context, token string) (*user.User, error) {
	ctx, span := tracer.Start(ctx, "auth.ResolveCurrentUser")
	defer span.End()

	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		s.logger.Debug("token rejected", "reason", err)
		return nil, fail(span, ErrUnauthenticated)
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.logger.Debug("token subject no longer exists", "user_id", claims.UserID)
			return nil, fail(span, ErrUnauthenticated)
		}
		s.logger.Error("failed to look up token subject", "error", err)
		return nil, fail(span, ErrStorage)
	}

	return u.Public(), nil
}

func (s *Service) burnDummyVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash(context.WithoutCancel(ctx), dummyPassword)
		if err != nil {
			s.logger.Warn("failed to prepare dummy digest", "error", err)
			return
		}
		s.dummyDigest = digest
	})

	if s.dummyDigest != "" {
		_, _ = s.hasher.Verify(ctx, password, s.dummyDigest)
	}
}

func validateRegistration(name, email, password string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return &ValidationError{Field: "name", Message: "name must be at most 100 characters"}
	}

	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if len(email) > maxEmailLength {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}

	if password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	switch n := utf8.RuneCountInString(password); {
	case n < minPasswordLength:
		return &ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	case n > maxPasswordLength:
		return &ValidationError{Field: "password", Message: "password must be at most 128 characters"}
	}

	return nil
}

// fail records err on span and returns it unchanged.
func fail(span trace.Span, err error) error {
	span.SetStatus(codes.Error, err.Error())
	return err
}
