package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// 没有配置文件时默认值必须能通过校验
	require.NoError(t, LoadConfig())

	cfg := GetAppConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)

	assert.Equal(t, "local", cfg.Upload.Provider)
	assert.Equal(t, []string{".pdf", ".docx", ".txt"}, cfg.Upload.AllowedExts)

	assert.Equal(t, 500, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 50, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 5, cfg.Knowledge.TopK)
	assert.Equal(t, "sqlite", cfg.Knowledge.VectorStore.Provider)

	assert.Equal(t, "deepseek", cfg.AI.DefaultModel)
	require.Contains(t, cfg.AI.Models, "deepseek")
	require.Contains(t, cfg.AI.Models, "zhipu")
	assert.Equal(t, "deepseek-chat", cfg.AI.Models["deepseek"].ModelName)
	assert.Equal(t, "glm-4", cfg.AI.Models["zhipu"].ModelName)
	assert.Equal(t, 2000, cfg.AI.MaxTokens)
	assert.Equal(t, 30, cfg.AI.TimeoutSeconds)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PORT", "9002")
	t.Setenv("DEEPSEEK_API_KEY", "sk-from-env")

	require.NoError(t, LoadConfig())

	cfg := GetAppConfig()
	assert.Equal(t, "9002", cfg.Server.Port)
	assert.Equal(t, "sk-from-env", cfg.AI.Models["deepseek"].APIKey)
}
