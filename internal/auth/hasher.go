// Package auth implements credential hashing, signed tokens, cookie sessions
// and the signup/login/reset flows built on them.
package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	AlgorithmPBKDF2   = "pbkdf2"
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

const (
	pbkdf2Iterations = 600000
	// Digests written as "pbkdf2:sha256" without a count used the older default.
	pbkdf2LegacyIterations = 260000
	pbkdf2SaltLen          = 16
	pbkdf2SaltChars        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	bcryptCost = bcrypt.DefaultCost

	// OWASP-recommended argon2id parameters.
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid digest.
	Verify(password, digest string) (bool, error)

	// NeedsUpgrade returns true if the digest should be rehashed.
	NeedsUpgrade(digest string) bool
}

// NewHasher returns a hasher that writes digests with algorithm and accepts
// digests from any supported algorithm.
func NewHasher(algorithm string) (*MultiHasher, error) {
	var primary PasswordHasher
	switch algorithm {
	case AlgorithmPBKDF2, "":
		primary = NewPBKDF2Hasher()
		algorithm = AlgorithmPBKDF2
	case AlgorithmBcrypt:
		primary = NewBcryptHasher()
	case AlgorithmArgon2id:
		primary = NewArgon2idHasher()
	default:
		return nil, oops.Code("AUTH_UNKNOWN_ALGORITHM").Errorf("unsupported hash algorithm: %s", algorithm)
	}
	return &MultiHasher{algorithm: algorithm, primary: primary}, nil
}

// MultiHasher hashes with one algorithm and verifies any of the supported ones.
type MultiHasher struct {
	algorithm string
	primary   PasswordHasher
}

func (h *MultiHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

func (h *MultiHasher) Verify(password, digest string) (bool, error) {
	switch algorithmOf(digest) {
	case AlgorithmPBKDF2:
		return NewPBKDF2Hasher().Verify(password, digest)
	case AlgorithmBcrypt:
		return NewBcryptHasher().Verify(password, digest)
	case AlgorithmArgon2id:
		return NewArgon2idHasher().Verify(password, digest)
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unrecognized digest format")
	}
}

func (h *MultiHasher) NeedsUpgrade(digest string) bool {
	if algorithmOf(digest) != h.algorithm {
		return true
	}
	return h.primary.NeedsUpgrade(digest)
}

// DummyDigest returns a valid digest of a random password, verified against
// when no user matches so that unknown emails cost as much as wrong passwords.
func (h *MultiHasher) DummyDigest() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	return h.primary.Hash(hex.EncodeToString(b))
}

func algorithmOf(digest string) string {
	switch {
	case strings.HasPrefix(digest, "pbkdf2:"):
		return AlgorithmPBKDF2
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return AlgorithmBcrypt
	case strings.HasPrefix(digest, "$argon2id$"):
		return AlgorithmArgon2id
	default:
		return ""
	}
}

// PBKDF2Hasher writes werkzeug-compatible digests:
// pbkdf2:sha256:<iterations>$<salt>$<hex digest>
type PBKDF2Hasher struct {
	iterations int
}

func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{iterations: pbkdf2Iterations}
}

func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt, err := randomSalt(pbkdf2SaltLen)
	if err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", h.iterations, salt, hex.EncodeToString(key)), nil
}

func (h *PBKDF2Hasher) Verify(password, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 3 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	method := strings.Split(parts[0], ":")
	if len(method) < 2 || len(method) > 3 || method[0] != "pbkdf2" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash method: %s", parts[0])
	}

	newHash, size, err := hashFunc(method[1])
	if err != nil {
		return false, err
	}

	iterations := pbkdf2LegacyIterations
	if len(method) == 3 {
		iterations, err = strconv.Atoi(method[2])
		if err != nil || iterations <= 0 {
			return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid iteration count: %s", method[2])
		}
	}

	expected, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	computed := pbkdf2.Key([]byte(password), []byte(parts[1]), iterations, size, newHash)
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func (h *PBKDF2Hasher) NeedsUpgrade(digest string) bool {
	return !strings.HasPrefix(digest, fmt.Sprintf("pbkdf2:sha256:%d$", h.iterations))
}

func hashFunc(name string) (func() hash.Hash, int, error) {
	switch name {
	case "sha256":
		return sha256.New, sha256.Size, nil
	case "sha512":
		return sha512.New, sha512.Size, nil
	case "sha1":
		return sha1.New, sha1.Size, nil
	default:
		return nil, 0, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash function: %s", name)
	}
}

func randomSalt(n int) (string, error) {
	max := big.NewInt(int64(len(pbkdf2SaltChars)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = pbkdf2SaltChars[idx.Int64()]
	}
	return string(b), nil
}

// BcryptHasher wraps golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcryptCost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case err == bcrypt.ErrMismatchedHashAndPassword:
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}

func (h *BcryptHasher) NeedsUpgrade(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	return err != nil || cost < h.cost
}

// Argon2idHasher writes PHC strings: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2idHasher struct{}

func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid parallelism %d", threads)
	}
	if iterations == 0 || memory == 0 || memory > 1<<20 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid cost parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(expected) == 0 || len(expected) > 1024 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key length %d", len(expected))
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	want := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$", argon2.Version, argon2Memory, argon2Time, argon2Threads)
	return !strings.HasPrefix(digest, want)
}
