package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const argon2Scheme = "argon2id"

// Lower bounds for NewArgon2 and for the cost read back from stored hashes.
const (
	minMemoryKB    = 8 * 1024
	minTimeCost    = 1
	minParallelism = 1
	minSaltLength  = 16
	minKeyLength   = 16
)

// Config holds Argon2id cost parameters. Input length is bounded by
// Policy.MaxBytes through Multi, not here.
type Config struct {
	Memory      uint32 // KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Config) validate() error {
	floors := []struct {
		name     string
		got, min uint64
	}{
		{"memory", uint64(c.Memory), minMemoryKB},
		{"time", uint64(c.Time), minTimeCost},
		{"parallelism", uint64(c.Parallelism), minParallelism},
		{"salt length", uint64(c.SaltLength), minSaltLength},
		{"key length", uint64(c.KeyLength), minKeyLength},
	}
	for _, f := range floors {
		if f.got < f.min {
			return fmt.Errorf("argon2 %s must be >= %d", f.name, f.min)
		}
	}
	return nil
}

// Argon2 hashes passwords with Argon2id.
type Argon2 struct {
	config Config
}

// argon2Cost is the cost recorded in a stored hash.
type argon2Cost struct {
	memory, time uint32
	threads      uint8
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Scheme is the PHC identifier Multi routes on.
func (a *Argon2) Scheme() string { return argon2Scheme }

// Hash returns a PHC-encoded Argon2id hash with a fresh random salt.
// Input bytes are used as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	c := argon2Cost{memory: a.config.Memory, time: a.config.Time, threads: a.config.Parallelism}
	sum := c.key(password, salt, a.config.KeyLength)
	params := fmt.Sprintf("m=%d,t=%d,p=%d", c.memory, c.time, c.threads)
	return encodePHC(argon2Scheme, argon2.Version, params, salt, sum), nil
}

// Verify recomputes the hash with the stored cost and compares in constant time.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	c, h, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	computed := c.key(password, h.salt, uint32(len(h.sum)))
	return subtle.ConstantTimeCompare(computed, h.sum) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with a lower cost or
// a different key length than the hasher is configured for.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	c, h, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	return c.memory < a.config.Memory ||
		c.time < a.config.Time ||
		c.threads < a.config.Parallelism ||
		uint32(len(h.sum)) != a.config.KeyLength, nil
}

func (c argon2Cost) key(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.threads, keyLen)
}

func decodeArgon2(encoded string) (argon2Cost, phcHash, error) {
	h, err := decodePHC(encoded)
	if err != nil {
		return argon2Cost{}, phcHash{}, err
	}
	if h.id != argon2Scheme || h.version != argon2.Version {
		return argon2Cost{}, phcHash{}, fmt.Errorf("%w: want %s v=%d", errMalformedHash, argon2Scheme, argon2.Version)
	}
	if len(h.params) != 3 {
		return argon2Cost{}, phcHash{}, fmt.Errorf("%w: want m, t and p", errMalformedHash)
	}
	if len(h.salt) < minSaltLength {
		return argon2Cost{}, phcHash{}, fmt.Errorf("%w: salt too short", errMalformedHash)
	}

	m, err := h.uint("m", 32, minMemoryKB)
	if err != nil {
		return argon2Cost{}, phcHash{}, err
	}
	t, err := h.uint("t", 32, minTimeCost)
	if err != nil {
		return argon2Cost{}, phcHash{}, err
	}
	p, err := h.uint("p", 8, minParallelism)
	if err != nil {
		return argon2Cost{}, phcHash{}, err
	}
	return argon2Cost{memory: uint32(m), time: uint32(t), threads: uint8(p)}, h, nil
}
