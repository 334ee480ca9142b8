package auth

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

// Scheme identifies a password hashing algorithm.
type Scheme string

const (
	SchemeBcrypt   Scheme = "bcrypt"
	SchemeArgon2id Scheme = "argon2id"
)

const (
	// bcrypt ignores everything past 72 bytes, so longer input is refused.
	maxBcryptPasswordBytes = 72
	// Generous cap so passphrases work but MBs of data don't.
	maxArgon2PasswordBytes = 512

	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// HasherConfig configures a Hasher.
type HasherConfig struct {
	Scheme        Scheme
	BcryptCost    int
	Argon2Time    uint32
	Argon2Memory  uint32 // KiB
	Argon2Threads uint8
}

// DefaultHasherConfig returns bcrypt at bcrypt.DefaultCost, with argon2id
// parameters following the OWASP baseline for when that scheme is selected.
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{
		Scheme:        SchemeBcrypt,
		BcryptCost:    bcrypt.DefaultCost,
		Argon2Time:    1,
		Argon2Memory:  64 * 1024,
		Argon2Threads: 4,
	}
}

// Hasher produces and verifies self-describing password digests.
// It is immutable after construction and safe for concurrent use.
type Hasher struct {
	cfg HasherConfig
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	switch cfg.Scheme {
	case SchemeBcrypt:
		if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("password: bcrypt cost %d out of range [%d, %d]", cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case SchemeArgon2id:
		if cfg.Argon2Time == 0 || cfg.Argon2Memory == 0 || cfg.Argon2Threads == 0 {
			return nil, errors.New("password: argon2id parameters must be non-zero")
		}
	default:
		return nil, fmt.Errorf("password: unsupported scheme %q", cfg.Scheme)
	}
	return &Hasher{cfg: cfg}, nil
}

// Hash returns a salted digest of plain using the configured scheme.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("%w: empty password", ErrEncoding)
	}

	switch h.cfg.Scheme {
	case SchemeArgon2id:
		if len(plain) > maxArgon2PasswordBytes {
			return "", fmt.Errorf("%w: password longer than %d bytes", ErrEncoding, maxArgon2PasswordBytes)
		}
		return h.hashArgon2id(plain)
	default:
		if len(plain) > maxBcryptPasswordBytes {
			return "", fmt.Errorf("%w: password longer than %d bytes", ErrEncoding, maxBcryptPasswordBytes)
		}
		digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cfg.BcryptCost)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrEncoding, err)
		}
		return string(digest), nil
	}
}

// Verify reports whether plain matches digest. A mismatch is (false, nil);
// a digest in an unknown or corrupt format is (false, ErrEncoding).
func (h *Hasher) Verify(plain, digest string) (bool, error) {
	switch schemeOf(digest) {
	case SchemeBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrEncoding, err)
	case SchemeArgon2id:
		p, err := parseArgon2id(digest)
		if err != nil {
			return false, err
		}
		sum := argon2.IDKey([]byte(plain), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
		return subtle.ConstantTimeCompare(sum, p.key) == 1, nil
	default:
		return false, fmt.Errorf("%w: unrecognized digest format", ErrEncoding)
	}
}

// NeedsRehash reports whether digest was produced by a different scheme or
// with weaker parameters than the ones currently configured.
func (h *Hasher) NeedsRehash(digest string) bool {
	if schemeOf(digest) != h.cfg.Scheme {
		return true
	}

	switch h.cfg.Scheme {
	case SchemeBcrypt:
		cost, err := bcrypt.Cost([]byte(digest))
		return err != nil || cost < h.cfg.BcryptCost
	default:
		p, err := parseArgon2id(digest)
		if err != nil {
			return true
		}
		return p.time < h.cfg.Argon2Time || p.memory < h.cfg.Argon2Memory || p.threads < h.cfg.Argon2Threads
	}
}

func schemeOf(digest string) Scheme {
	switch {
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return SchemeBcrypt
	case strings.HasPrefix(digest, "$argon2id$"):
		return SchemeArgon2id
	default:
		return ""
	}
}

func (h *Hasher) hashArgon2id(plain string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.cfg.Argon2Time, h.cfg.Argon2Memory, h.cfg.Argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=MEMORY,t=TIME,p=THREADS$SALT$KEY
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Argon2Memory, h.cfg.Argon2Time, h.cfg.Argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

type argon2Params struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2id(digest string) (argon2Params, error) {
	var p argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != string(SchemeArgon2id) {
		return p, fmt.Errorf("%w: invalid argon2id format", ErrEncoding)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, fmt.Errorf("%w: argon2id version: %w", ErrEncoding, err)
	}
	if version != argon2.Version {
		return p, fmt.Errorf("%w: unsupported argon2id version %d", ErrEncoding, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, fmt.Errorf("%w: argon2id params: %w", ErrEncoding, err)
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return p, fmt.Errorf("%w: argon2id params must be non-zero", ErrEncoding)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("%w: argon2id salt: %w", ErrEncoding, err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("%w: argon2id key: %w", ErrEncoding, err)
	}
	if len(p.key) == 0 {
		return p, fmt.Errorf("%w: argon2id key is empty", ErrEncoding)
	}

	return p, nil
}
