package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "state"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyToken, []byte(`"tok"`)))
	got, err := store.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, `"tok"`, string(got))

	_, err = os.Stat(filepath.Join(dir, "state", "token.json"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, KeyToken))
	_, err = store.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, KeyToken))
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = store.Set(context.Background(), "../escape", []byte("x"))
	require.ErrorContains(t, err, "invalid key")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	buf := []byte("[1]")
	require.NoError(t, store.Set(ctx, KeyCart, buf))
	buf[1] = '2'
	got, _ := store.Get(ctx, KeyCart)
	assert.Equal(t, "[1]", string(got))

	store.SetFailWrites(errors.New("quota exceeded"))
	assert.EqualError(t, store.Set(ctx, KeyCart, nil), "quota exceeded")
	assert.EqualError(t, store.Delete(ctx, KeyCart), "quota exceeded")
}
