package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), CategoryAlive)
	require.NoError(t, err)

	storeContract(t, s)
}

func TestFileStore_Layout(t *testing.T) {
	root := t.TempDir()
	ready, err := NewFileStore(root, CategoryReady)
	require.NoError(t, err)
	alive, err := NewFileStore(root, CategoryAlive)
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, ready.Set(context.Background(), "worker@w1", at))

	info, err := os.Stat(filepath.Join(root, "ready", "worker@w1"))
	require.NoError(t, err)
	require.True(t, info.ModTime().Equal(at))

	// Categories are independent.
	_, ok, err := alive.Get(context.Background(), "worker@w1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStore_KeepsDottedNames(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "")
	require.NoError(t, err)

	require.NoError(t, s.Set(context.Background(), "worker@host.example.com", time.Now()))

	keys, err := s.Keys(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"worker@host.example.com"}, keys)
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), CategoryAlive)
	require.NoError(t, err)

	for _, key := range []string{"../escape", "a/b", `a\b`, ".", ".."} {
		err := s.Set(context.Background(), key, time.Now())
		require.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestFileStore_IgnoresSubdirectories(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, "")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(root, "alive"), 0o755))
	require.NoError(t, s.Set(context.Background(), "w", time.Now()))

	keys, err := s.Keys(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"w"}, keys)
}

func TestFileStore_MissingDirectoryIsUnavailable(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, CategoryAlive)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(s.Dir()))

	_, err = s.Keys(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)

	err = s.Set(context.Background(), "w", time.Now())
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
