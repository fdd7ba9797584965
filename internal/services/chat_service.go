package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/docchat/backend-go/internal/ai"
	"github.com/docchat/backend-go/internal/apperrors"
	"github.com/docchat/backend-go/internal/knowledge"
	"github.com/docchat/backend-go/internal/logger"
	"github.com/docchat/backend-go/internal/metrics"
)

// noRelevantAnswer 检索无命中时的固定回答，不调用补全端点
const noRelevantAnswer = "抱歉，在已上传的文档中没有找到相关信息。请尝试上传相关文档或换一个问题。"

// ChatService 检索编排：嵌入问题、取TopK、拼上下文、调补全
type ChatService struct {
	embedder knowledge.Embedder
	store    knowledge.VectorStore
	registry *ai.Registry
	topK     int
}

// NewChatService 创建问答服务
func NewChatService(embedder knowledge.Embedder, store knowledge.VectorStore, registry *ai.Registry, topK int) *ChatService {
	if topK <= 0 {
		topK = 5
	}
	return &ChatService{
		embedder: embedder,
		store:    store,
		registry: registry,
		topK:     topK,
	}
}

// ChatResult 问答结果
type ChatResult struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	RelevantChunks int      `json:"relevant_chunks"`
	ModelUsed      string   `json:"model_used"`
}

// Answer 回答一个问题；model为空时使用默认模型
func (s *ChatService) Answer(ctx context.Context, question, model string) (*ChatResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.NewValidationError("问题不能为空")
	}
	if model == "" {
		model = s.registry.DefaultModel()
	}
	generator, ok := s.registry.Get(model)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("不支持的AI模型: %s", model))
	}
	metrics.ChatRequests.WithLabelValues(model).Inc()

	// 问题原文直接参与检索，不做清洗，保证与入库侧嵌入空间一致
	results, err := s.Search(ctx, question, s.topK)
	if err != nil {
		return nil, apperrors.NewInternalError("检索失败", err)
	}
	if len(results) == 0 {
		return &ChatResult{
			Answer:         noRelevantAnswer,
			Sources:        []string{},
			RelevantChunks: 0,
			ModelUsed:      model,
		}, nil
	}

	blocks := make([]string, len(results))
	for i, result := range results {
		blocks[i] = fmt.Sprintf("来源: %s\n内容: %s", result.Metadata.Source, result.Text)
	}
	docContext := strings.Join(blocks, "\n\n")

	answer, err := generator.GenerateAnswer(ctx, question, docContext)
	if err != nil {
		// 补全失败不作为请求失败：错误文本作为答案返回，来源照常给出
		metrics.ProviderErrors.WithLabelValues("completion").Inc()
		logger.Error("补全调用失败", zap.String("model", model), zap.Error(err))
		answer = "生成回答时出错: " + err.Error()
	}

	return &ChatResult{
		Answer:         answer,
		Sources:        distinctSources(results),
		RelevantChunks: len(results),
		ModelUsed:      model,
	}, nil
}

// Search 对查询文本做相似度检索；空白查询直接返回空结果，不调用嵌入端点
func (s *ChatService) Search(ctx context.Context, query string, limit int) ([]knowledge.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.topK
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("embedding").Inc()
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	timer := prometheus.NewTimer(metrics.SearchDuration)
	defer timer.ObserveDuration()
	return s.store.Search(ctx, embedding, limit)
}

// distinctSources 按命中顺序去重来源文件名
func distinctSources(results []knowledge.SearchResult) []string {
	seen := make(map[string]bool, len(results))
	sources := make([]string, 0, len(results))
	for _, result := range results {
		source := result.Metadata.Source
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		sources = append(sources, source)
	}
	return sources
}
