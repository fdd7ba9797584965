package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docchat/backend-go/internal/apperrors"
	"github.com/docchat/backend-go/internal/knowledge"
	"github.com/docchat/backend-go/internal/logger"
	"github.com/docchat/backend-go/internal/metrics"
	"github.com/docchat/backend-go/internal/storage"
)

// contentPreviewLimit 内容预览的最大字符数
const contentPreviewLimit = 20000

// DocumentService 文档入库与生命周期管理
type DocumentService struct {
	parsers     *knowledge.FileParserManager
	chunker     *knowledge.Chunker
	embedder    knowledge.Embedder
	store       knowledge.VectorStore
	files       storage.FileStore
	allowedExts []string
}

// NewDocumentService 创建文档服务
func NewDocumentService(
	parsers *knowledge.FileParserManager,
	chunker *knowledge.Chunker,
	embedder knowledge.Embedder,
	store knowledge.VectorStore,
	files storage.FileStore,
	allowedExts []string,
) *DocumentService {
	return &DocumentService{
		parsers:     parsers,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		files:       files,
		allowedExts: allowedExts,
	}
}

// UploadResult 上传结果
type UploadResult struct {
	Filename    string `json:"filename"`
	ChunksCount int    `json:"chunks_count"`
	DocumentID  string `json:"document_id"`
	FileExt     string `json:"file_ext"`
}

// Upload 处理一次文档上传：存原始文件、提取、分块、嵌入、写入向量库
//
// 各步骤之间没有事务：嵌入失败时原始文件已落盘但索引无记录，
// 这是已知缺口，不做自动回滚。
func (s *DocumentService) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.extAllowed(ext) {
		return nil, apperrors.NewInvalidFormatError(
			fmt.Sprintf("不支持的文件格式: %s，支持格式: %s", ext, strings.Join(s.allowedExts, ", ")))
	}

	// 原始文件用不透明ID存储，与基于显示名的索引主键空间解耦
	documentID := uuid.NewString()
	storedName := documentID + ext
	if err := s.files.Save(ctx, storedName, data); err != nil {
		return nil, apperrors.NewInternalError("保存文件失败", err)
	}
	logger.Info("文件已保存", zap.String("filename", filename), zap.String("stored", storedName))

	text, err := s.parsers.ParseFile(bytes.NewReader(data), filename)
	if err != nil {
		// 解码层的失败对用户统一表现为"内容为空"
		logger.Warn("文档解析失败", zap.String("filename", filename), zap.Error(err))
		return nil, apperrors.NewEmptyDocumentError()
	}

	cleaned := s.chunker.Clean(text)
	if cleaned == "" {
		return nil, apperrors.NewEmptyDocumentError()
	}

	chunks := s.chunker.Split(cleaned)
	if len(chunks) == 0 {
		return nil, apperrors.NewEmptyDocumentError()
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("embedding").Inc()
		return nil, apperrors.NewExternalServiceError("生成嵌入向量失败", err)
	}

	records := make([]knowledge.Record, len(chunks))
	for i, chunk := range chunks {
		meta := knowledge.ChunkMetadata{
			Source:   filename,
			ChunkID:  chunk.Index,
			FileType: ext,
		}
		records[i] = knowledge.Record{
			ID:        knowledge.RecordID(meta),
			Text:      chunk.Text,
			Embedding: embeddings[i],
			Metadata:  meta,
		}
	}
	if err := s.store.Upsert(ctx, records); err != nil {
		return nil, apperrors.NewInternalError("写入向量库失败", err)
	}

	metrics.DocumentsUploaded.Inc()
	metrics.ChunksIndexed.Add(float64(len(records)))
	logger.Info("文档入库完成",
		zap.String("filename", filename),
		zap.Int("chunks", len(records)))

	return &UploadResult{
		Filename:    filename,
		ChunksCount: len(records),
		DocumentID:  documentID,
		FileExt:     ext,
	}, nil
}

// List 返回已索引的文档显示名列表
func (s *DocumentService) List(ctx context.Context) ([]string, error) {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("获取文档列表失败", err)
	}
	if sources == nil {
		sources = []string{}
	}
	return sources, nil
}

// Delete 删除指定显示名的全部索引记录；文档不存在时为空操作
func (s *DocumentService) Delete(ctx context.Context, source string) error {
	if err := s.store.DeleteSource(ctx, source); err != nil {
		return apperrors.NewInternalError("删除文档失败", err)
	}
	metrics.DocumentsDeleted.Inc()
	logger.Info("文档已删除", zap.String("source", source))
	return nil
}

// ContentResult 内容预览结果
type ContentResult struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	FileExt   string `json:"file_ext"`
}

// Content 按不透明ID前缀定位原始文件并现场重新提取文本（不缓存）
func (s *DocumentService) Content(ctx context.Context, documentID string) (*ContentResult, error) {
	names, err := s.files.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("读取上传目录失败", err)
	}

	var storedName string
	for _, name := range names {
		if strings.HasPrefix(name, documentID) {
			storedName = name
			break
		}
	}
	if storedName == "" {
		return nil, apperrors.NewNotFoundError("文件不存在")
	}

	data, err := s.files.Read(ctx, storedName)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperrors.NewNotFoundError("文件不存在")
		case errors.Is(err, storage.ErrPermission):
			return nil, apperrors.NewAccessDeniedError("没有文件读取权限")
		default:
			return nil, apperrors.NewInternalError("读取文件失败", err)
		}
	}

	ext := strings.ToLower(filepath.Ext(storedName))
	if !s.parsers.Supports(storedName) {
		return nil, apperrors.NewInvalidFormatError(fmt.Sprintf("不支持的文件类型: %s", ext))
	}
	text, err := s.parsers.ParseFile(bytes.NewReader(data), storedName)
	if err != nil {
		return nil, apperrors.NewInternalError("读取文件内容失败", err)
	}

	runes := []rune(text)
	truncated := len(runes) >= contentPreviewLimit
	if truncated {
		runes = runes[:contentPreviewLimit]
	}

	return &ContentResult{
		Filename:  documentID,
		Content:   string(runes),
		Truncated: truncated,
		FileExt:   ext,
	}, nil
}

func (s *DocumentService) extAllowed(ext string) bool {
	for _, allowed := range s.allowedExts {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}
