// Package password hashes and verifies credentials with Argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16

	MinLength = 8
	MaxLength = 128
)

var errMalformedHash = errors.New("malformed argon2id hash")

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// Hash returns an encoded Argon2id hash in the PHC string format.
func Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A malformed hash never matches.
func Verify(password, encoded string) bool {
	p, err := decode(encoded)
	if err != nil {
		// Spend the same work as a real check so a corrupt row is not observable.
		VerifyDummy(password)
		return false
	}
	check := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(p.key, check) == 1
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// VerifyDummy runs one verification against a fixed hash and always returns false.
// Callers use it when no account matches so the response time does not reveal that.
func VerifyDummy(password string) bool {
	dummyOnce.Do(func() {
		h, err := Hash("invoiceflow-dummy-credential")
		if err != nil {
			return
		}
		dummyHash = h
	})
	if p, err := decode(dummyHash); err == nil {
		check := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
		_ = subtle.ConstantTimeCompare(p.key, check)
	}
	return false
}

func decode(encoded string) (*params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return nil, errMalformedHash
	}

	fields := strings.Split(parts[3], ",")
	if len(fields) != 3 {
		return nil, errMalformedHash
	}
	values := make([]uint64, 3)
	for i, prefix := range []string{"m=", "t=", "p="} {
		raw, ok := strings.CutPrefix(fields[i], prefix)
		if !ok {
			return nil, errMalformedHash
		}
		bits := 32
		if prefix == "p=" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil || v == 0 {
			return nil, errMalformedHash
		}
		values[i] = v
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, errMalformedHash
	}

	return &params{
		memory:  uint32(values[0]),
		time:    uint32(values[1]),
		threads: uint8(values[2]),
		salt:    salt,
		key:     key,
	}, nil
}

// ValidateStrength checks the length policy for new credentials.
func ValidateStrength(password string) bool {
	n := len(password)
	return n >= MinLength && n <= MaxLength
}
