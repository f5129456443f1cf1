package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "k", []byte("v1")))
			require.NoError(t, s.Set(ctx, "k", []byte("v2")))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, s.Set(ctx, "a", []byte("x")))
			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "k"}, keys)

			require.NoError(t, s.Delete(ctx, "k"))
			_, err = s.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyAppMode, []byte(`"Fallback"`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, KeyAppMode)
	require.NoError(t, err)
	assert.Equal(t, `"Fallback"`, string(got))
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLite{}, s)

	_, err = OpenSQLite("  ")
	assert.Error(t, err)
}
