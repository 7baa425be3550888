package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestStore_PutGetRevision(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	rev, err := s.Revision(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, rev)

	rev, err = s.Put(ctx, "k", []byte(`[1]`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	rev, err = s.Put(ctx, "k", []byte(`[1,2]`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	e, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(e.Value))
	assert.Equal(t, int64(2), e.Revision)
	assert.NotEmpty(t, e.UpdatedAt)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.ErrorIs(t, s.Delete(ctx, "k"), ErrNotFound)

	_, err := s.Put(ctx, "k", []byte("v"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Credential(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	got, err := s.Credential(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, s.SetCredential(ctx, "   "))
	require.NoError(t, s.SetCredential(ctx, " abc123 "))

	got, err = s.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)

	require.NoError(t, s.ClearCredential(ctx))
	require.NoError(t, s.ClearCredential(ctx))

	got, err = s.Credential(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SharedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(path)
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Put(ctx, "k", []byte("from a"))
	require.NoError(t, err)

	e, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "from a", string(e.Value))
}
