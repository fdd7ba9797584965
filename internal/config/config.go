package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Upload    UploadConfig    `mapstructure:"upload" validate:"required"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge" validate:"required"`
	AI        AIConfig        `mapstructure:"ai" validate:"required"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required"`
	Env  string `mapstructure:"env" validate:"required,oneof=development staging production"`
}

// UploadConfig 原始文件上传存储配置
type UploadConfig struct {
	Provider    string      `mapstructure:"provider" validate:"required,oneof=local minio"`
	Path        string      `mapstructure:"path"`
	MaxSize     int64       `mapstructure:"max_size"`
	AllowedExts []string    `mapstructure:"allowed_exts" validate:"required,min=1"`
	MinIO       MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig MinIO对象存储配置
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KnowledgeConfig 检索管线配置
type KnowledgeConfig struct {
	ChunkSize    int               `mapstructure:"chunk_size" validate:"gt=0"`
	ChunkOverlap int               `mapstructure:"chunk_overlap" validate:"gte=0"`
	TopK         int               `mapstructure:"top_k" validate:"gt=0"`
	VectorStore  VectorStoreConfig `mapstructure:"vector_store"`
	Embedding    EmbeddingConfig   `mapstructure:"embedding"`
}

// VectorStoreConfig 向量存储配置
type VectorStoreConfig struct {
	Provider   string       `mapstructure:"provider" validate:"required,oneof=sqlite milvus memory"`
	SQLitePath string       `mapstructure:"sqlite_path"`
	Milvus     MilvusConfig `mapstructure:"milvus"`
}

// MilvusConfig Milvus配置
type MilvusConfig struct {
	Address    string `mapstructure:"address"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Collection string `mapstructure:"collection"`
	Database   string `mapstructure:"database"`
	TLS        bool   `mapstructure:"tls"`
	VectorSize int    `mapstructure:"vector_size"`
	Distance   string `mapstructure:"distance"`
}

// EmbeddingConfig 嵌入模型配置
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// AIConfig 补全模型配置：模型名 -> 接入参数的查表
type AIConfig struct {
	DefaultModel   string                 `mapstructure:"default_model" validate:"required"`
	Models         map[string]ModelConfig `mapstructure:"models" validate:"required,min=1"`
	MaxTokens      int                    `mapstructure:"max_tokens"`
	Temperature    float64                `mapstructure:"temperature"`
	TimeoutSeconds int                    `mapstructure:"timeout_seconds"`
}

// ModelConfig 单个补全模型的接入参数
type ModelConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	ModelName string `mapstructure:"model_name"`
}

var (
	AppConfig *Config
	mu        sync.RWMutex
)

// GetAppConfig 获取当前配置（支持热更新后的读取）
func GetAppConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return AppConfig
}

// LoadConfig 加载配置：默认值 -> 配置文件（可选） -> 环境变量
func LoadConfig() error {
	setDefaults()

	// 读取环境变量
	viper.SetEnvPrefix("DOCCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 常用环境变量兼容
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		viper.Set("ai.models.deepseek.api_key", key)
	}
	if key := os.Getenv("ZHIPU_API_KEY"); key != "" {
		viper.Set("ai.models.zhipu.api_key", key)
	}
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		viper.Set("knowledge.embedding.api_key", key)
	}

	// 配置文件可选；存在时才启用热更新
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("读取配置文件失败: %w", err)
		}
		viper.OnConfigChange(func(e fsnotify.Event) {
			// 模型表支持运行期调整；其余配置项重启后生效
			_ = reload()
		})
		viper.WatchConfig()
	}

	return reload()
}

func reload() error {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	mu.Lock()
	AppConfig = cfg
	mu.Unlock()
	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")

	// 文件上传默认值
	viper.SetDefault("upload.provider", "local")
	viper.SetDefault("upload.path", "./data/uploaded_files")
	viper.SetDefault("upload.max_size", 15728640) // 15MB
	viper.SetDefault("upload.allowed_exts", []string{".pdf", ".docx", ".txt"})
	viper.SetDefault("upload.minio.endpoint", "")
	viper.SetDefault("upload.minio.bucket", "docchat-files")
	viper.SetDefault("upload.minio.use_ssl", false)

	// 检索管线默认值
	viper.SetDefault("knowledge.chunk_size", 500)
	viper.SetDefault("knowledge.chunk_overlap", 50)
	viper.SetDefault("knowledge.top_k", 5)
	viper.SetDefault("knowledge.vector_store.provider", "sqlite")
	viper.SetDefault("knowledge.vector_store.sqlite_path", "./data/vector_db")
	viper.SetDefault("knowledge.vector_store.milvus.address", "localhost:19530")
	viper.SetDefault("knowledge.vector_store.milvus.collection", "doc_chunks")
	viper.SetDefault("knowledge.vector_store.milvus.database", "default")
	viper.SetDefault("knowledge.vector_store.milvus.tls", false)
	viper.SetDefault("knowledge.vector_store.milvus.vector_size", 1536)
	viper.SetDefault("knowledge.vector_store.milvus.distance", "cosine")
	viper.SetDefault("knowledge.embedding.base_url", "")
	viper.SetDefault("knowledge.embedding.model", "text-embedding-3-small")
	viper.SetDefault("knowledge.embedding.dimensions", 1536)

	// 补全模型表默认值（模型名 -> endpoint/key/模型标识）
	viper.SetDefault("ai.default_model", "deepseek")
	viper.SetDefault("ai.max_tokens", 2000)
	viper.SetDefault("ai.temperature", 0.1)
	viper.SetDefault("ai.timeout_seconds", 30)
	viper.SetDefault("ai.models.deepseek.base_url", "https://api.deepseek.com/v1")
	viper.SetDefault("ai.models.deepseek.model_name", "deepseek-chat")
	viper.SetDefault("ai.models.zhipu.base_url", "https://open.bigmodel.cn/api/paas/v4")
	viper.SetDefault("ai.models.zhipu.model_name", "glm-4")
}
