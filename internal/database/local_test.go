package database

import (
	"path/filepath"
	"testing"

	"github.com/baptistelechat/overti-me/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockLocal(t *testing.T) {
	t.Run("should allow a single holder at a time", func(t *testing.T) {
		// given
		cfg := config.Local{Path: filepath.Join(t.TempDir(), "data", "overti-me.db")}
		first, err := LockLocal(cfg)
		require.NoError(t, err)

		// when
		_, err = LockLocal(cfg)

		// then
		assert.ErrorIs(t, err, ErrLocalInUse)

		require.NoError(t, first.Unlock())
		second, err := LockLocal(cfg)
		require.NoError(t, err)
		assert.NoError(t, second.Unlock())
	})

	t.Run("should lock each database file separately", func(t *testing.T) {
		dir := t.TempDir()
		a, err := LockLocal(config.Local{Path: filepath.Join(dir, "a.db")})
		require.NoError(t, err)
		defer a.Unlock()

		b, err := LockLocal(config.Local{Path: filepath.Join(dir, "b.db")})

		require.NoError(t, err)
		assert.NoError(t, b.Unlock())
	})
}
