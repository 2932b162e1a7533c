package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HashBcrypt   = "bcrypt"
	HashArgon2id = "argon2id"
)

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordHasher produces salted one-way digests and checks plaintexts
// against them.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches digest. A malformed
	// digest is a mismatch.
	Verify(plaintext, digest string) bool
}

// Argon2Params are the cost parameters written into new argon2id digests.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultArgon2Params = Argon2Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}

type passwordHasher struct {
	algorithm  string
	bcryptCost int
	argon      Argon2Params
}

// NewPasswordHasher returns a hasher writing digests with algorithm.
// Verification accepts digests of either algorithm, so switching does
// not lock out existing users.
func NewPasswordHasher(algorithm string, bcryptCost int) (PasswordHasher, error) {
	switch algorithm {
	case HashBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case HashArgon2id:
	default:
		return nil, fmt.Errorf("unknown password hash algorithm %q", algorithm)
	}
	return &passwordHasher{algorithm: algorithm, bcryptCost: bcryptCost, argon: DefaultArgon2Params}, nil
}

func (h *passwordHasher) Hash(plaintext string) (string, error) {
	if h.algorithm == HashArgon2id {
		return h.hashArgon2(plaintext)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (h *passwordHasher) Verify(plaintext, digest string) bool {
	if strings.HasPrefix(digest, "$argon2id$") {
		return verifyArgon2(plaintext, digest)
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// hashArgon2 encodes as $argon2id$v=19$m=65536,t=1,p=4$SALT$HASH.
func (h *passwordHasher) hashArgon2(plaintext string) (string, error) {
	salt := make([]byte, h.argon.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	p := h.argon
	hash := argon2.IDKey([]byte(plaintext), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2(plaintext, digest string) bool {
	// ["", "argon2id", "v=19", "m=65536,t=1,p=4", salt, hash]
	sections := strings.Split(digest, "$")
	if len(sections) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(sections[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(sections[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil || t < 1 || p < 1 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(sections[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(plaintext), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
