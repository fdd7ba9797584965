package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/beego/beego/v2/server/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/backend-go/internal/ai"
	"github.com/docchat/backend-go/internal/config"
	"github.com/docchat/backend-go/internal/knowledge"
	"github.com/docchat/backend-go/internal/services"
	"github.com/docchat/backend-go/internal/storage"
)

// httpStubEmbedder 确定性嵌入桩
type httpStubEmbedder struct{}

func httpStubVector(text string) []float32 {
	runes := []rune(text)
	var sum float32
	for _, r := range runes {
		sum += float32(r % 97)
	}
	return []float32{float32(len(runes)), sum, 1}
}

func (httpStubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return httpStubVector(text), nil
}

func (httpStubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = httpStubVector(text)
	}
	return vectors, nil
}

func (httpStubEmbedder) Dimensions() int { return 3 }
func (httpStubEmbedder) Ready() bool     { return true }

// httpStubGenerator 固定回答的补全桩
type httpStubGenerator struct{}

func (httpStubGenerator) GenerateAnswer(ctx context.Context, question, docContext string) (string, error) {
	return "固定回答", nil
}

func (httpStubGenerator) ModelName() string { return "deepseek-chat" }

// newTestHandler 按生产路由注册控制器，返回可直接ServeHTTP的处理器
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	require.NoError(t, config.LoadConfig())

	files, err := storage.NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	store := knowledge.NewMemoryVectorStore()
	embedder := httpStubEmbedder{}

	documentService := services.NewDocumentService(
		knowledge.NewFileParserManager(),
		knowledge.NewChunker(500, 50),
		embedder,
		store,
		files,
		[]string{".pdf", ".docx", ".txt"},
	)
	registry := ai.NewRegistryWith("deepseek", map[string]ai.Generator{
		"deepseek": httpStubGenerator{},
	})
	chatService := services.NewChatService(embedder, store, registry, 5)

	handler := web.NewControllerRegister()
	documentController := NewDocumentController(documentService)
	handler.Add("/upload", documentController,
		web.WithRouterMethods(documentController, "post:Upload"))
	handler.Add("/documents", documentController,
		web.WithRouterMethods(documentController, "get:GetDocuments"))
	handler.Add("/documents/:document_id/content", documentController,
		web.WithRouterMethods(documentController, "get:Content"))
	handler.Add("/documents/:filename", documentController,
		web.WithRouterMethods(documentController, "delete:Delete"))
	chatController := NewChatController(chatService, registry)
	handler.Add("/chat", chatController,
		web.WithRouterMethods(chatController, "post:Chat"))
	handler.Add("/models", chatController,
		web.WithRouterMethods(chatController, "get:Models"))
	return handler
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serveJSON(t *testing.T, handler http.Handler, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body),
		"响应不是JSON: %s", recorder.Body.String())
	return recorder.Code, body
}

// 上传请求必须真正到达服务层：beego每个请求新建控制器实例，
// 注入的服务要能随实例拷贝过去，否则这里会panic成500
func TestUploadReachesServiceThroughRouter(t *testing.T) {
	handler := newTestHandler(t)

	status, body := serveJSON(t, handler, multipartUpload(t, "测试.txt", []byte("第一句。第二句。")))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "测试.txt", body["filename"])
	assert.Equal(t, ".txt", body["file_ext"])
	assert.GreaterOrEqual(t, body["chunks_count"].(float64), float64(1))
	require.NotEmpty(t, body["document_id"])

	// 列表接口看到刚上传的文档，证明走的是同一个服务实例
	status, body = serveJSON(t, handler,
		httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"测试.txt"}, body["documents"])
}

func TestUploadRejectsUnsupportedExtOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	status, body := serveJSON(t, handler, multipartUpload(t, "evil.exe", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "不支持的文件格式")
}

func TestChatUnknownModelOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/chat?question=hi&model=gpt-99", nil)
	status, body := serveJSON(t, handler, req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "gpt-99")
}

func TestChatNoDocumentsOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/chat?question=%E4%BD%A0%E5%A5%BD", nil)
	status, body := serveJSON(t, handler, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "deepseek", body["model_used"])
	assert.Contains(t, body["answer"], "没有找到相关信息")
}

func TestDeleteDocumentIsIdempotentOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/documents/%E6%96%87%E6%A1%A3.txt", nil)
	status, body := serveJSON(t, handler, req)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["message"], "文档.txt")

	// 再删一次仍然是200
	req = httptest.NewRequest(http.MethodDelete, "/documents/%E6%96%87%E6%A1%A3.txt", nil)
	status, _ = serveJSON(t, handler, req)
	assert.Equal(t, http.StatusOK, status)
}

func TestModelsOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	status, body := serveJSON(t, handler,
		httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"deepseek"}, body["available_models"])
	assert.Equal(t, "deepseek", body["default_model"])
}

// 内容预览的路径参数和删除路径一样做百分号解码
func TestContentDecodesDocumentIDParam(t *testing.T) {
	handler := newTestHandler(t)

	status, body := serveJSON(t, handler, multipartUpload(t, "预览.txt", []byte("预览内容。")))
	require.Equal(t, http.StatusOK, status)
	documentID := body["document_id"].(string)

	// 客户端把ID里的连字符编码为%2D（请求行里是%252D），
	// 路由解出参数后控制器还要再解一层
	encoded := strings.Replace(documentID, "-", "%2D", 1)
	path := "/documents/" + strings.Replace(encoded, "%", "%25", 1) + "/content"
	status, body = serveJSON(t, handler, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "预览内容。", body["content"])
	assert.Equal(t, ".txt", body["file_ext"])
}

func TestContentUnknownIDOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/documents/no-such-id/content", nil)
	status, body := serveJSON(t, handler, req)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "文件不存在", body["detail"])
}
