package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/docchat/backend-go/internal/ai"
	"github.com/docchat/backend-go/internal/config"
	"github.com/docchat/backend-go/internal/knowledge"
	"github.com/docchat/backend-go/internal/logger"
	"github.com/docchat/backend-go/internal/services"
	"github.com/docchat/backend-go/internal/storage"
)

// App 聚合需要在退出时清理的资源
type App struct {
	DocumentService *services.DocumentService
	ChatService     *services.ChatService
	Registry        *ai.Registry

	cleanupTasks []func() error
}

// Shutdown 逆序执行清理任务
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Warn("清理任务失败", zap.Error(err))
		}
	}
	logger.Sync()
}

// Init 初始化配置、日志与各服务组件
func Init() (*App, error) {
	// .env不存在不是错误
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	if err := config.LoadConfig(); err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	cfg := config.GetAppConfig()

	app := &App{}
	ctx := context.Background()

	fileStore, err := buildFileStore(ctx, &cfg.Upload)
	if err != nil {
		return nil, err
	}

	vectorStore, err := buildVectorStore(&cfg.Knowledge)
	if err != nil {
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, vectorStore.Close)

	embedder := knowledge.NewOpenAIEmbedder(knowledge.OpenAIEmbedderOptions{
		APIKey:     cfg.Knowledge.Embedding.APIKey,
		BaseURL:    cfg.Knowledge.Embedding.BaseURL,
		Model:      cfg.Knowledge.Embedding.Model,
		Dimensions: cfg.Knowledge.Embedding.Dimensions,
	})

	app.Registry = ai.NewRegistry(&cfg.AI)

	chunker := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	parsers := knowledge.NewFileParserManager()

	app.DocumentService = services.NewDocumentService(
		parsers, chunker, embedder, vectorStore, fileStore, cfg.Upload.AllowedExts)
	app.ChatService = services.NewChatService(
		embedder, vectorStore, app.Registry, cfg.Knowledge.TopK)

	logger.Info("应用初始化完成",
		zap.String("upload_provider", cfg.Upload.Provider),
		zap.String("vector_store", cfg.Knowledge.VectorStore.Provider),
		zap.String("default_model", cfg.AI.DefaultModel))

	return app, nil
}

func buildFileStore(ctx context.Context, cfg *config.UploadConfig) (storage.FileStore, error) {
	switch cfg.Provider {
	case "minio":
		store, err := storage.NewMinIOFileStore(ctx, storage.MinIOOptions{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化MinIO存储失败: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocalFileStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("初始化本地文件存储失败: %w", err)
		}
		return store, nil
	}
}

func buildVectorStore(cfg *config.KnowledgeConfig) (knowledge.VectorStore, error) {
	switch cfg.VectorStore.Provider {
	case "milvus":
		store, err := knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
			Address:    cfg.VectorStore.Milvus.Address,
			Username:   cfg.VectorStore.Milvus.Username,
			Password:   cfg.VectorStore.Milvus.Password,
			Collection: cfg.VectorStore.Milvus.Collection,
			Database:   cfg.VectorStore.Milvus.Database,
			VectorSize: cfg.VectorStore.Milvus.VectorSize,
			Distance:   cfg.VectorStore.Milvus.Distance,
			UseTLS:     cfg.VectorStore.Milvus.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化Milvus向量库失败: %w", err)
		}
		return store, nil
	case "memory":
		return knowledge.NewMemoryVectorStore(), nil
	default:
		store, err := knowledge.NewSQLiteVectorStore(cfg.VectorStore.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("初始化SQLite向量库失败: %w", err)
		}
		return store, nil
	}
}
