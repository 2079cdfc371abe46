package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadConfig_PartialYAMLKeepsDefaults 配置文件只覆盖声明的键，其余保持默认
func TestLoadConfig_PartialYAMLKeepsDefaults(t *testing.T) {
	path := writeTempConfig(t, `
server:
  address: ":9090"
  api_keys:
    - "key-one"
llm:
  model: "llama3:8b"
  qpm: 10
qdrant:
  dimension: 768
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, []string{"key-one"}, cfg.Server.APIKeys)
	assert.Equal(t, "llama3:8b", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.LLM.QPM)
	assert.Equal(t, 768, cfg.Qdrant.Dimension)

	// 未声明的键保持默认值
	assert.Equal(t, "resume_chunks", cfg.Qdrant.Collection)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "bge-m3:latest", cfg.Ollama.Model)
	assert.Equal(t, 5, cfg.Qdrant.DefaultSearchLimit)
	assert.Equal(t, "universal-1.0", cfg.ActiveParserVersion)
	assert.Equal(t, 3, cfg.RabbitMQ.ConsumerWorkers)
}

// TestLoadConfig_MissingFile 显式路径不存在时报错
func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// TestLoadConfig_InvalidYAML 语法错误报错
func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [unclosed")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

// TestLoadConfig_EnvOverrides 环境变量覆盖敏感项和部署相关项
func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "env-secret")
	t.Setenv("QDRANT_ENDPOINT", "http://qdrant.internal:6333")
	t.Setenv("OTLP_ENDPOINT", "otel-collector:4317")

	path := writeTempConfig(t, `
llm:
  api_key: "file-secret"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.LLM.APIKey, "环境变量应覆盖文件里的值")
	assert.Equal(t, "http://qdrant.internal:6333", cfg.Qdrant.Endpoint)
	assert.Equal(t, "otel-collector:4317", cfg.Tracing.OTLPEndpoint)
}

// TestOllamaConfig_Timeout 非法超时取默认30秒
func TestOllamaConfig_Timeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, OllamaConfig{}.Timeout())
	assert.Equal(t, 30*time.Second, OllamaConfig{TimeoutSeconds: -1}.Timeout())
	assert.Equal(t, 90*time.Second, OllamaConfig{TimeoutSeconds: 90}.Timeout())
}

// TestGetDuration 时长字符串解析，非法或为空用默认值
func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("not-a-duration", time.Minute))
}

// TestCreateSampleConfig 生成示例文件且不覆盖已存在的文件
func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	// 生成的示例必须能被自己加载回来
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)

	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")
}
