package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreBehavesLikeSQLite(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecords()))

	// 检索命中
	results, err := store.Search(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "汽车不是水果。", results[0].Text)

	// 覆盖写入不产生重复
	require.NoError(t, store.Upsert(ctx, testRecords()))
	results, err = store.Search(ctx, []float32{1, 1, 1}, 100)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// 列表按首次写入顺序
	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.pdf"}, sources)

	// 删除只影响目标文档
	require.NoError(t, store.DeleteSource(ctx, "b.pdf"))
	sources, err = store.ListSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, sources)

	assert.True(t, store.Ready())
	assert.NoError(t, store.Close())
}

func TestMemoryStoreEmptyQueryShortCircuit(t *testing.T) {
	store := NewMemoryVectorStore()

	// 空向量查询直接返回空结果
	results, err := store.Search(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
