package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/backend-go/internal/apperrors"
	"github.com/docchat/backend-go/internal/knowledge"
	"github.com/docchat/backend-go/internal/storage"
)

// stubEmbedder 确定性嵌入：同一文本永远得到同一向量
type stubEmbedder struct {
	embedCalls int
	batchCalls int
}

func stubVector(text string) []float32 {
	runes := []rune(text)
	var sum float32
	for _, r := range runes {
		sum += float32(r % 97)
	}
	return []float32{float32(len(runes)), sum, 1}
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.embedCalls++
	return stubVector(text), nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = stubVector(text)
	}
	return vectors, nil
}

func (e *stubEmbedder) Dimensions() int { return 3 }
func (e *stubEmbedder) Ready() bool     { return true }

func newTestDocumentService(t *testing.T) (*DocumentService, knowledge.VectorStore) {
	t.Helper()
	files, err := storage.NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	store := knowledge.NewMemoryVectorStore()
	service := NewDocumentService(
		knowledge.NewFileParserManager(),
		knowledge.NewChunker(500, 50),
		&stubEmbedder{},
		store,
		files,
		[]string{".pdf", ".docx", ".txt"},
	)
	return service, store
}

func TestDocumentServiceUploadAndList(t *testing.T) {
	service, _ := newTestDocumentService(t)
	ctx := context.Background()

	result, err := service.Upload(ctx, "测试文档.txt", []byte("第一句。第二句。第三句。"))
	require.NoError(t, err)
	assert.Equal(t, "测试文档.txt", result.Filename)
	assert.Equal(t, ".txt", result.FileExt)
	assert.Greater(t, result.ChunksCount, 0)
	assert.NotEmpty(t, result.DocumentID)

	documents, err := service.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"测试文档.txt"}, documents)
}

func TestDocumentServiceUploadRejectsUnsupportedExt(t *testing.T) {
	service, _ := newTestDocumentService(t)

	_, err := service.Upload(context.Background(), "evil.exe", []byte("data"))
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.ErrCodeInvalidFileFormat, appErr.Code)
	assert.Contains(t, appErr.Message, ".txt")
}

func TestDocumentServiceUploadRejectsEmptyDocument(t *testing.T) {
	service, _ := newTestDocumentService(t)

	// 清洗后没有有效文本的文档按空文档拒绝
	_, err := service.Upload(context.Background(), "blank.txt", []byte("   \n\n   "))
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.ErrCodeEmptyDocument, appErr.Code)
	assert.Equal(t, "文档内容为空或读取失败", appErr.Message)
}

func TestDocumentServiceReuploadIsIdempotent(t *testing.T) {
	service, store := newTestDocumentService(t)
	ctx := context.Background()

	content := []byte(strings.Repeat("这是一个会被切成多块的长句子。", 60))
	first, err := service.Upload(ctx, "重复.txt", content)
	require.NoError(t, err)
	require.Greater(t, first.ChunksCount, 1)

	// 同名文档重传覆盖旧记录，索引里不堆积重复块
	second, err := service.Upload(ctx, "重复.txt", content)
	require.NoError(t, err)
	assert.Equal(t, first.ChunksCount, second.ChunksCount)

	results, err := store.Search(ctx, []float32{1, 1, 1}, 1000)
	require.NoError(t, err)
	assert.Len(t, results, first.ChunksCount)
}

func TestDocumentServiceDeleteIsolation(t *testing.T) {
	service, _ := newTestDocumentService(t)
	ctx := context.Background()

	_, err := service.Upload(ctx, "保留.txt", []byte("保留的内容。"))
	require.NoError(t, err)
	_, err = service.Upload(ctx, "删除.txt", []byte("要删除的内容。"))
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, "删除.txt"))

	documents, err := service.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"保留.txt"}, documents)

	// 重复删除是空操作
	assert.NoError(t, service.Delete(ctx, "删除.txt"))
}

func TestDocumentServiceContent(t *testing.T) {
	service, _ := newTestDocumentService(t)
	ctx := context.Background()

	uploaded, err := service.Upload(ctx, "预览.txt", []byte("预览内容。"))
	require.NoError(t, err)

	result, err := service.Content(ctx, uploaded.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "预览内容。", result.Content)
	assert.Equal(t, ".txt", result.FileExt)
	assert.False(t, result.Truncated)
}

func TestDocumentServiceContentNotFound(t *testing.T) {
	service, _ := newTestDocumentService(t)

	_, err := service.Content(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeResourceNotFound, apperrors.AsAppError(err).Code)
}

func TestDocumentServiceContentTruncation(t *testing.T) {
	service, _ := newTestDocumentService(t)
	ctx := context.Background()

	// 超过预览上限的文本被截断并打上标记
	big := strings.Repeat("长", contentPreviewLimit+100)
	uploaded, err := service.Upload(ctx, "大文件.txt", []byte(big))
	require.NoError(t, err)

	result, err := service.Content(ctx, uploaded.DocumentID)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Len(t, []rune(result.Content), contentPreviewLimit)
}
