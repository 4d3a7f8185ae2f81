// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestHashPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("produces valid hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	})

	t.Run("different passwords produce different hashes", func(t *testing.T) {
		hash1, err := hasher.Hash("password1")
		require.NoError(t, err)
		hash2, err := hasher.Hash("password2")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		assert.ErrorIs(t, err, auth.ErrEmptyPassword)
	})

	t.Run("embeds configured parameters", func(t *testing.T) {
		custom := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 2, Memory: 32 * 1024, Threads: 2})
		hash, err := custom.Hash("password")
		require.NoError(t, err)
		assert.Contains(t, hash, "m=32768,t=2,p=2")
	})
}

func TestVerifyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)
		assert.True(t, hasher.Verify("correctpassword", hash))
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)
		assert.False(t, hasher.Verify("wrongpassword", hash))
	})

	t.Run("verifies across parameter changes", func(t *testing.T) {
		// A credential hashed at old cost still verifies after the
		// configured cost is raised.
		old := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 16 * 1024, Threads: 1})
		hash, err := old.Hash("password")
		require.NoError(t, err)

		raised := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4})
		assert.True(t, raised.Verify("password", hash))
	})

	t.Run("malformed credential verifies as false", func(t *testing.T) {
		malformed := []string{
			"",
			"not-a-valid-hash",
			"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",        // wrong algorithm
			"$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA",        // bad version
			"$argon2id$v=19$invalid$c2FsdA$aGFzaA",               // bad params
			"$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA", // bad salt base64
			"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!", // bad key base64
			"$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA",     // threads overflow
		}
		for _, cred := range malformed {
			assert.False(t, hasher.Verify("password", cred), "credential %q should not verify", cred)
		}
	})
}

func TestNeedsRehash(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("current credential does not need rehash", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.False(t, hasher.NeedsRehash(hash))
	})

	t.Run("weaker credential needs rehash", func(t *testing.T) {
		weak := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 16 * 1024, Threads: 1})
		hash, err := weak.Hash("password")
		require.NoError(t, err)
		assert.True(t, hasher.NeedsRehash(hash))
	})

	t.Run("foreign scheme needs rehash", func(t *testing.T) {
		bcryptHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIvNq.Uf3hE9tQALNP1Qn9sNp5x5x5x5"
		assert.True(t, hasher.NeedsRehash(bcryptHash))
	})

	t.Run("malformed credential needs rehash", func(t *testing.T) {
		assert.True(t, hasher.NeedsRehash("garbage"))
	})
}
