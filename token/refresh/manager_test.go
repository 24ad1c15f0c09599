package refresh_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/hmo-portal-session/internal/config"
	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/token/refresh"
	refreshrepofake "github.com/jrsteele09/hmo-portal-session/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), config.DevServer{})

	t.Run("create and validate", func(t *testing.T) {
		tok, err := m.Create("user-1", "tenant-1")
		require.NoError(t, err)
		require.Len(t, tok, 64)

		rt, err := m.Validate(tok)
		require.NoError(t, err)
		require.Equal(t, "user-1", rt.UserID)
		require.Equal(t, "tenant-1", rt.TenantID)
	})

	t.Run("one live token per user", func(t *testing.T) {
		first, err := m.Create("user-2", "tenant-1")
		require.NoError(t, err)
		second, err := m.Create("user-2", "tenant-1")
		require.NoError(t, err)

		_, err = m.Validate(first)
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		_, err = m.Validate(second)
		require.NoError(t, err)
	})

	t.Run("rotate invalidates the old token", func(t *testing.T) {
		old, err := m.Create("user-3", "tenant-1")
		require.NoError(t, err)

		rt, next, err := m.Rotate(old)
		require.NoError(t, err)
		require.Equal(t, "user-3", rt.UserID)
		require.NotEqual(t, old, next)

		_, _, err = m.Rotate(old)
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	})

	t.Run("expired token is rejected and removed", func(t *testing.T) {
		tok, err := m.Create("user-4", "tenant-1")
		require.NoError(t, err)

		refresh.NowTimeFunc = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
		defer func() { refresh.NowTimeFunc = time.Now }()

		_, err = m.Validate(tok)
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)

		refresh.NowTimeFunc = time.Now
		_, err = m.Validate(tok)
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := m.Validate("")
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	})
}
