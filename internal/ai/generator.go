package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docchat/backend-go/internal/config"
)

// Generator 补全能力接口：基于检索到的文档内容回答问题
type Generator interface {
	GenerateAnswer(ctx context.Context, question, docContext string) (string, error)
	ModelName() string
}

const answerPromptTemplate = `基于以下文档内容，回答用户的问题。如果文档中没有相关信息，请如实告知。
文档内容：
%s
用户问题：%s
请基于文档内容提供准确、有用的回答：`

// openAIChatGenerator 通过OpenAI兼容协议调用补全端点
//
// DeepSeek、智谱等服务均兼容该协议，接入差异只在BaseURL/APIKey/模型标识，
// 因此新增模型只需要在配置表里加一条记录。
type openAIChatGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewChatGenerator 根据配置表条目创建补全客户端
//
// key缺失不在此处拦截：调用会在生成阶段失败，错误文本作为答案返回给用户。
func NewChatGenerator(modelCfg config.ModelConfig, aiCfg *config.AIConfig) Generator {
	clientConfig := openai.DefaultConfig(modelCfg.APIKey)
	if modelCfg.BaseURL != "" {
		clientConfig.BaseURL = modelCfg.BaseURL
	}

	maxTokens := aiCfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	timeout := time.Duration(aiCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &openAIChatGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       modelCfg.ModelName,
		maxTokens:   maxTokens,
		temperature: float32(aiCfg.Temperature),
		timeout:     timeout,
	}
}

func (g *openAIChatGenerator) GenerateAnswer(ctx context.Context, question, docContext string) (string, error) {
	prompt := fmt.Sprintf(answerPromptTemplate, docContext, question)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("补全响应为空")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *openAIChatGenerator) ModelName() string {
	return g.model
}

// Registry 模型名到补全客户端的映射
type Registry struct {
	mu           sync.RWMutex
	generators   map[string]Generator
	defaultModel string
}

// NewRegistry 按配置表构建模型注册表
func NewRegistry(aiCfg *config.AIConfig) *Registry {
	registry := &Registry{
		generators:   make(map[string]Generator),
		defaultModel: aiCfg.DefaultModel,
	}
	for name, modelCfg := range aiCfg.Models {
		registry.generators[name] = NewChatGenerator(modelCfg, aiCfg)
	}
	return registry
}

// NewRegistryWith 用于测试：手工注入Generator
func NewRegistryWith(defaultModel string, generators map[string]Generator) *Registry {
	return &Registry{
		generators:   generators,
		defaultModel: defaultModel,
	}
}

// Get 按模型名查找补全客户端
func (r *Registry) Get(name string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	generator, ok := r.generators[name]
	return generator, ok
}

// Models 返回可用模型名（排序后，保证结果稳定）
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultModel 返回默认模型名
func (r *Registry) DefaultModel() string {
	return r.defaultModel
}
