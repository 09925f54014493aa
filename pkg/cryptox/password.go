package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt
)

const argon2idPrefix = "$argon2id$"

// PasswordHasher produces and checks one-way password digests.
//
// Verify never fails loudly: an unparsable digest is simply a mismatch.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) bool
}

// Scheme is a PasswordHasher that can recognise digests it produced.
type Scheme interface {
	PasswordHasher
	Handles(encodedHash string) bool
}

// Argon2idHasher hashes with Argon2id and encodes the result in PHC format.
// The optional pepper is appended to every password before hashing.
type Argon2idHasher struct {
	Pepper string
}

func NewArgon2idHasher(pepper string) *Argon2idHasher {
	return &Argon2idHasher{Pepper: pepper}
}

// Hash generates a PHC-format Argon2id hash string including salt and parameters.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password+h.Pepper), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify compares a plaintext password against a PHC-style Argon2id hash in
// constant time.
func (h *Argon2idHasher) Verify(password, encodedHash string) bool {
	params, salt, expected, ok := parseArgon2id(encodedHash)
	if !ok {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password+h.Pepper),
		salt,
		params.iterations,
		params.memory,
		params.parallelism,
		uint32(len(expected)), // #nosec G115 - bounded by parseArgon2id
	)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func (h *Argon2idHasher) Handles(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, argon2idPrefix)
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// parseArgon2id splits $argon2id$v=19$m=X,t=Y,p=Z$salt$hash into its parts.
func parseArgon2id(encoded string) (argon2Params, []byte, []byte, bool) {
	var p argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, false
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, nil, nil, false
	}

	var par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &par); err != nil {
		return p, nil, nil, false
	}
	if par == 0 || par > 255 || p.iterations == 0 || p.memory == 0 {
		return p, nil, nil, false
	}
	p.parallelism = uint8(par)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 || len(hash) > 1024 {
		return p, nil, nil, false
	}

	return p, salt, hash, true
}

// MultiHasher hashes with Primary and verifies digests from any known scheme,
// so rows written by an older scheme keep working.
type MultiHasher struct {
	Primary   Scheme
	Fallbacks []Scheme
}

func NewMultiHasher(primary Scheme, fallbacks ...Scheme) *MultiHasher {
	return &MultiHasher{Primary: primary, Fallbacks: fallbacks}
}

func (m *MultiHasher) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m *MultiHasher) Verify(password, encodedHash string) bool {
	if s := m.schemeFor(encodedHash); s != nil {
		return s.Verify(password, encodedHash)
	}
	return false
}

// NeedsRehash reports whether encodedHash was produced by a scheme other than
// the primary one.
func (m *MultiHasher) NeedsRehash(encodedHash string) bool {
	return !m.Primary.Handles(encodedHash)
}

func (m *MultiHasher) schemeFor(encodedHash string) Scheme {
	if m.Primary.Handles(encodedHash) {
		return m.Primary
	}
	for _, s := range m.Fallbacks {
		if s.Handles(encodedHash) {
			return s
		}
	}
	return nil
}
