package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/logger"
)

// OllamaEmbedder 通过本地Ollama服务生成文本向量
// 实现 cloudwego/eino embedding.Embedder 接口，默认模型 bge-m3
// Ollama 的 /api/embeddings 端点一次只接受一段文本，批量输入逐条串行请求
type OllamaEmbedder struct {
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ embedding.Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder 创建Ollama向量化器
func NewOllamaEmbedder(cfg config.OllamaConfig) (*OllamaEmbedder, error) {
	model := cfg.Model
	if model == "" {
		model = "bge-m3:latest"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		model:      model,
		dimensions: cfg.Dimensions,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger.Logger.With().Str("component", "ollama_embedder").Logger(),
	}, nil
}

// GetDimensions 返回向量维度，未配置时为0（由首次调用结果决定）
func (o *OllamaEmbedder) GetDimensions() int {
	return o.dimensions
}

// ollamaEmbeddingRequest Ollama /api/embeddings 请求体
type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaEmbeddingResponse Ollama /api/embeddings 响应体
type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// EmbedStrings 将一批文本转换为向量
// 任意一条失败整批失败，返回的向量顺序与输入一致
func (o *OllamaEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	options := &embedding.Options{}
	embedding.GetCommonOptions(options, opts...)

	effectiveModel := o.model
	if options.Model != nil && *options.Model != "" {
		effectiveModel = *options.Model
	}

	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	embeddings := make([][]float64, 0, len(texts))
	for i, text := range texts {
		vector, err := o.embedOne(ctx, effectiveModel, text)
		if err != nil {
			return nil, fmt.Errorf("第 %d 条文本向量化失败: %w", i, err)
		}
		embeddings = append(embeddings, vector)
	}

	if o.dimensions == 0 && len(embeddings) > 0 {
		o.dimensions = len(embeddings[0])
	}

	o.logger.Debug().
		Str("model", effectiveModel).
		Int("texts", len(texts)).
		Int("dimensions", o.dimensions).
		Msg("文本向量化完成")
	return embeddings, nil
}

func (o *OllamaEmbedder) embedOne(ctx context.Context, model, text string) ([]float64, error) {
	jsonData, err := json.Marshal(ollamaEmbeddingRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API调用失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("解析响应JSON失败: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama API返回错误: %s", parsed.Error)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("ollama返回空向量")
	}
	return parsed.Embedding, nil
}

// TestConnection 用一段探针文本验证Ollama服务与模型可用
func (o *OllamaEmbedder) TestConnection(ctx context.Context) error {
	vectors, err := o.EmbedStrings(ctx, []string{"test"})
	if err != nil {
		return fmt.Errorf("ollama连通性检测失败: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return fmt.Errorf("ollama连通性检测返回空向量")
	}
	return nil
}
