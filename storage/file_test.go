package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/document-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend_StoreFetch(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	data := []byte(`{"height":3}`)
	id, err := backend.Store(ctx, data, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)

	_, err = os.Stat(filepath.Join(dir, "snapshot", id.String()))
	require.NoError(t, err)

	got, err := backend.Fetch(ctx, id, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Storing the same content again is idempotent.
	again, err := backend.Store(ctx, data, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	entries, err := os.ReadDir(filepath.Join(dir, "snapshot"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileBackend_NotFound(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, err = backend.Fetch(context.Background(), interfaces.ComputeID([]byte("missing")), interfaces.SnapshotType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFileBackend_Unavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	backend, err := NewFileBackend(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	assert.False(t, backend.Available(context.Background()))
}
