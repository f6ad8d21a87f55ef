// Package password covers the credential secret lifecycle: strength
// validation on the way in and argon2id hashing/verification for storage.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// Fixed cost parameters. Hashing is deliberately expensive; these values are
// part of the stored hash format, so changing them only affects new hashes.
const (
	hashMemoryKB    uint32 = 64 * 1024
	hashTime        uint32 = 3
	hashParallelism uint8  = 2
	hashSaltLength  uint32 = 16
	hashKeyLength   uint32 = 32
)

// Hasher hashes and verifies passwords using argon2id in PHC string format.
// It holds no state and is safe for concurrent use.
type Hasher struct{}

// NewHasher returns a Hasher with the fixed cost parameters.
func NewHasher() *Hasher { return &Hasher{} }

// Hash derives an argon2id hash of password with a fresh random salt and
// encodes it as a PHC string.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}

	salt := make([]byte, hashSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, hashTime, hashMemoryKB, hashParallelism, hashKeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		hashMemoryKB,
		hashTime,
		hashParallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encodedHash. The comparison is
// constant-time.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	var parsed parsedPHC
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid parameter entry")
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return nil, errors.New("invalid memory parameter")
			}
			parsed.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return nil, errors.New("invalid time parameter")
			}
			parsed.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v == 0 {
				return nil, errors.New("invalid parallelism parameter")
			}
			parsed.parallelism = uint8(v)
		default:
			return nil, errors.New("unsupported parameter")
		}
	}
	if parsed.memory == 0 || parsed.time == 0 || parsed.parallelism == 0 {
		return nil, errors.New("missing parameters")
	}

	parsed.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(parsed.salt) < int(hashSaltLength) {
		return nil, errors.New("invalid salt")
	}

	parsed.hash, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(parsed.hash) == 0 {
		return nil, errors.New("invalid hash")
	}

	return &parsed, nil
}
