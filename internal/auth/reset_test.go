// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestGenerateResetToken(t *testing.T) {
	t.Run("generates URL-safe token", func(t *testing.T) {
		token, hash, err := auth.GenerateResetToken()
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, token, hash)
		// base64url alphabet only; safe to embed in a link path.
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")
		assert.NotContains(t, token, "=")
	})

	t.Run("token encodes 32 bytes", func(t *testing.T) {
		token, _, err := auth.GenerateResetToken()
		require.NoError(t, err)
		assert.Len(t, token, 43) // ceil(32*8/6) without padding
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, hash1, err := auth.GenerateResetToken()
		require.NoError(t, err)
		token2, hash2, err := auth.GenerateResetToken()
		require.NoError(t, err)
		assert.NotEqual(t, token1, token2)
		assert.NotEqual(t, hash1, hash2)
	})
}

func TestVerifyResetToken(t *testing.T) {
	token, hash, err := auth.GenerateResetToken()
	require.NoError(t, err)

	t.Run("matching token verifies", func(t *testing.T) {
		assert.True(t, auth.VerifyResetToken(token, hash))
	})

	t.Run("wrong token fails", func(t *testing.T) {
		assert.False(t, auth.VerifyResetToken("wrong", hash))
	})

	t.Run("case variant fails", func(t *testing.T) {
		assert.False(t, auth.VerifyResetToken(strings.ToUpper(token), hash))
	})

	t.Run("empty inputs fail", func(t *testing.T) {
		assert.False(t, auth.VerifyResetToken("", hash))
		assert.False(t, auth.VerifyResetToken(token, ""))
	})
}

func TestNewPasswordReset(t *testing.T) {
	userID := ulid.Make()
	expiry := time.Now().Add(time.Hour)

	t.Run("creates validated reset", func(t *testing.T) {
		reset, err := auth.NewPasswordReset(userID, "somehash", expiry)
		require.NoError(t, err)
		assert.Equal(t, userID, reset.UserID)
		assert.Equal(t, "somehash", reset.TokenHash)
		assert.NotZero(t, reset.ID)
	})

	t.Run("rejects zero user ID", func(t *testing.T) {
		_, err := auth.NewPasswordReset(ulid.ULID{}, "somehash", expiry)
		assert.Error(t, err)
	})

	t.Run("rejects empty token hash", func(t *testing.T) {
		_, err := auth.NewPasswordReset(userID, "", expiry)
		assert.Error(t, err)
	})

	t.Run("rejects zero expiry", func(t *testing.T) {
		_, err := auth.NewPasswordReset(userID, "somehash", time.Time{})
		assert.Error(t, err)
	})
}

func TestPasswordReset_IsExpiredAt(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reset, err := auth.NewPasswordReset(ulid.Make(), "h", expiry)
	require.NoError(t, err)

	assert.False(t, reset.IsExpiredAt(expiry.Add(-time.Minute)))
	assert.False(t, reset.IsExpiredAt(expiry), "exact expiry instant is still live")
	assert.True(t, reset.IsExpiredAt(expiry.Add(time.Second)))
}
