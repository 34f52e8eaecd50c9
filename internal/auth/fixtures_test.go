package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-notes-api/internal/logging"
	"github.com/redmonkez12/go-notes-api/internal/user"
)

const (
	testSecret      = "0123456789abcdef0123456789abcdef"
	otherTestSecret = "fedcba9876543210fedcba9876543210"
	testTokenTTL    = time.Hour
)

// cheapParams keeps argon2id fast enough for unit tests.
var cheapParams = Argon2Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func newTestHasher() *Argon2Hasher {
	return NewArgon2Hasher(cheapParams, 2)
}

// memoryStore is an in-memory UserStore with injectable failures.
type memoryStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*user.User
	byEmail map[string]uuid.UUID

	getErr    error
	createErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byID:    make(map[uuid.UUID]*user.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *memoryStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	id, ok := s.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := *s.byID[id]
	return &u, nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *memoryStore) Create(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return user.ErrDuplicateEmail
	}
	c := *u
	s.byID[u.ID] = &c
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *memoryStore) stored(email string) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[s.byEmail[email]]
}

// racingStore reports every email as free but rejects every insert as a
// duplicate, as if another registration won between lookup and insert.
type racingStore struct {
	*memoryStore
}

func (racingStore) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, user.ErrNotFound
}

func (racingStore) Create(context.Context, *user.User) error {
	return user.ErrDuplicateEmail
}

// countingHasher counts Verify calls on the wrapped hasher.
type countingHasher struct {
	PasswordHasher
	verifies atomic.Int32
}

func (h *countingHasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	h.verifies.Add(1)
	return h.PasswordHasher.Verify(ctx, password, digest)
}

func newTestTokens(t *testing.T) *JWTService {
	t.Helper()
	tokens, err := NewJWTService([]byte(testSecret))
	require.NoError(t, err)
	return tokens
}

func newTestService(t *testing.T, store UserStore) *Service {
	t.Helper()
	return NewService(store, newTestHasher(), newTestTokens(t), logging.NewNopLogger(), testTokenTTL)
}
