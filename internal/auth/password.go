package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// PasswordHasher turns plaintext passwords into storable digests and checks
// plaintext against them. Implementations must be safe for concurrent use.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	// Verify reports whether password produces digest. A malformed digest
	// yields false; the error is reserved for ctx cancellation.
	Verify(ctx context.Context, password, digest string) (bool, error)
}

var _ PasswordHasher = (*Argon2Hasher)(nil)

// Argon2Params are the argon2id cost settings written into every digest.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Upper bounds accepted when decoding a stored digest.
const (
	maxArgon2Memory     = 1 << 20 // 1 GiB
	maxArgon2Iterations = 16
	maxArgon2KeyLength  = 128
)

// DefaultArgon2Params: time 3, memory 64MB, threads 4, 32-byte key.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2Hasher hashes with argon2id and verifies both argon2id and bcrypt
// digests. Computations are bounded by a semaphore so a burst of logins
// cannot exhaust memory or starve other requests of CPU.
type Argon2Hasher struct {
	params Argon2Params
	sem    *semaphore.Weighted
}

// NewArgon2Hasher returns a hasher allowing at most concurrency simultaneous
// computations. Zero or negative means one per CPU.
func NewArgon2Hasher(params Argon2Params, concurrency int) *Argon2Hasher {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	return &Argon2Hasher{
		params: params,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
}

// Hash returns $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<hash>.
func (h *Argon2Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	h.sem.Release(1)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	if isBcryptDigest(digest) {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false, err
		}
		defer h.sem.Release(1)

		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil, nil
	}

	params, salt, want, ok := decodeArgon2Digest(digest)
	if !ok {
		return false, nil
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	h.sem.Release(1)

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

func decodeArgon2Digest(digest string) (Argon2Params, []byte, []byte, bool) {
	var params Argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, false
	}

	var threads int
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &threads); err != nil {
		return params, nil, nil, false
	}
	if params.Memory == 0 || params.Memory > maxArgon2Memory ||
		params.Iterations == 0 || params.Iterations > maxArgon2Iterations ||
		threads < 1 || threads > 255 {
		return params, nil, nil, false
	}
	params.Parallelism = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return params, nil, nil, false
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxArgon2KeyLength {
		return params, nil, nil, false
	}
	params.KeyLength = uint32(len(key))

	return params, salt, key, true
}
