package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithm      = "argon2id"
	minSecretBytes = 10
)

var (
	ErrSecretTooShort  = errors.New("password: secret must be at least 10 bytes")
	ErrMalformedHash   = errors.New("password: malformed hash")
	ErrUnsupportedHash = errors.New("password: unsupported hash algorithm or version")
	ErrWeakParams      = errors.New("password: parameters below minimum")
)

// Params are the Argon2id cost parameters.
type Params struct {
	MemoryKiB uint32
	Passes    uint32
	Lanes     uint8
	SaltLen   uint32
	KeyLen    uint32
}

// DefaultParams follows the OWASP baseline for Argon2id.
func DefaultParams() Params {
	return Params{MemoryKiB: 64 * 1024, Passes: 3, Lanes: 2, SaltLen: 16, KeyLen: 32}
}

func (p Params) validate() error {
	switch {
	case p.MemoryKiB < 8*1024:
		return fmt.Errorf("%w: memory %d KiB < 8192", ErrWeakParams, p.MemoryKiB)
	case p.Passes < 1:
		return fmt.Errorf("%w: passes must be >= 1", ErrWeakParams)
	case p.Lanes < 1:
		return fmt.Errorf("%w: lanes must be >= 1", ErrWeakParams)
	case p.SaltLen < 16 || p.KeyLen < 16:
		return fmt.Errorf("%w: salt and key must be >= 16 bytes", ErrWeakParams)
	}
	return nil
}

// Hasher hashes and verifies secrets. It is safe for concurrent use.
type Hasher struct {
	params Params
}

func NewHasher(p Params) (*Hasher, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p}, nil
}

// Hash derives a fresh salted hash of secret. Secrets are hashed as raw bytes
// without Unicode normalization.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) < minSecretBytes {
		return "", ErrSecretTooShort
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, h.params.Passes, h.params.MemoryKiB, h.params.Lanes, h.params.KeyLen)

	return encode(h.params, salt, key), nil
}

// Verify reports whether secret matches encoded. When it matches, rehash is
// true if encoded was produced with weaker parameters than h uses.
func (h *Hasher) Verify(secret, encoded string) (ok, rehash bool, err error) {
	p, salt, want, err := decode(encoded)
	if err != nil {
		return false, false, err
	}

	got := argon2.IDKey([]byte(secret), salt, p.Passes, p.MemoryKiB, p.Lanes, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return false, false, nil
	}
	return true, h.weaker(p), nil
}

func (h *Hasher) weaker(p Params) bool {
	return p.MemoryKiB < h.params.MemoryKiB ||
		p.Passes < h.params.Passes ||
		p.Lanes < h.params.Lanes ||
		p.KeyLen != h.params.KeyLen
}

var b64 = base64.RawStdEncoding

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version, p.MemoryKiB, p.Passes, p.Lanes,
		b64.EncodeToString(salt), b64.EncodeToString(key))
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if parts[1] != algorithm || parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return Params{}, nil, nil, ErrUnsupportedHash
	}

	var p Params
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return Params{}, nil, nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Params{}, nil, nil, ErrMalformedHash
		}
		switch k {
		case "m":
			p.MemoryKiB = uint32(n)
		case "t":
			p.Passes = uint32(n)
		case "p":
			if n > 255 {
				return Params{}, nil, nil, ErrMalformedHash
			}
			p.Lanes = uint8(n)
		default:
			return Params{}, nil, nil, ErrMalformedHash
		}
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	p.SaltLen, p.KeyLen = uint32(len(salt)), uint32(len(key))

	if err := p.validate(); err != nil {
		return Params{}, nil, nil, err
	}
	return p, salt, key, nil
}
