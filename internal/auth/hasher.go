// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2Params tune the argon2id cost. The parameters are embedded in
// every credential, so raising them later never invalidates hashes
// produced at older settings.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultArgon2Params returns the OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 1, Memory: 64 * 1024, Threads: 4}
}

const (
	argon2SaltLen = 16 // salt length in bytes
	argon2KeyLen  = 32 // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides one-way password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-contained credential with a fresh random salt.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the credential. A
	// malformed credential verifies as false; it never fails.
	Verify(password, credential string) bool

	// NeedsRehash reports whether the credential was produced at weaker
	// parameters than currently configured.
	NeedsRehash(credential string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id in PHC string
// format: $argon2id$v=19$m=<KiB>,t=<iters>,p=<threads>$<salt>$<hash>.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates an Argon2idHasher with default parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return NewArgon2idHasherWithParams(DefaultArgon2Params())
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with explicit cost
// parameters. Zero fields fall back to the defaults.
func NewArgon2idHasherWithParams(p Argon2Params) *Argon2idHasher {
	def := DefaultArgon2Params()
	if p.Time == 0 {
		p.Time = def.Time
	}
	if p.Memory == 0 {
		p.Memory = def.Memory
	}
	if p.Threads == 0 {
		p.Threads = def.Threads
	}
	return &Argon2idHasher{params: p}
}

// Hash produces an argon2id credential for the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, argon2KeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify reports whether the password matches the credential. The hash is
// recomputed with the parameters embedded in the credential and compared
// in constant time over the derived keys.
func (h *Argon2idHasher) Verify(password, credential string) bool {
	p, salt, key, err := decodeCredential(credential)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key))) //nolint:gosec // key length is bounded by decodeCredential

	return subtle.ConstantTimeCompare(computed, key) == 1
}

// NeedsRehash reports whether the credential should be re-hashed: either
// it is not argon2id at all, or it was produced at lower cost than the
// hasher is configured for.
func (h *Argon2idHasher) NeedsRehash(credential string) bool {
	p, _, _, err := decodeCredential(credential)
	if err != nil {
		return true
	}
	return p.Time < h.params.Time || p.Memory < h.params.Memory
}

// decodeCredential parses a PHC argon2id string into its parameters,
// salt, and derived key.
func decodeCredential(credential string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(credential, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("not an argon2id credential")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1024 {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key length: %d", len(key))
	}

	p = Argon2Params{Time: time, Memory: memory, Threads: uint8(threads)}
	return p, salt, key, nil
}

// Compile-time interface check.
var _ PasswordHasher = (*Argon2idHasher)(nil)
