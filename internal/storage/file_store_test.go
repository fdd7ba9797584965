package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStoreRoundTrip(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc-123.txt", []byte("内容")))

	data, err := store.Read(ctx, "abc-123.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("内容"), data)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc-123.txt"}, names)
}

func TestLocalFileStoreReadMissing(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalFileStoreRemoveIsIdempotent(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a.txt", []byte("x")))
	require.NoError(t, store.Remove(ctx, "a.txt"))
	// 再删一次不报错
	assert.NoError(t, store.Remove(ctx, "a.txt"))
}

func TestLocalFileStoreSanitizesName(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// 路径穿越的文件名被压成基础名，写入不会逃出存储目录
	require.NoError(t, store.Save(ctx, "../../etc/evil.txt", []byte("x")))
	data, err := store.Read(ctx, "evil.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
