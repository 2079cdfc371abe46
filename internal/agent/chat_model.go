package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-rag-go/internal/config"
)

const (
	defaultChatAPIURL = "http://localhost:11434/v1/chat/completions"
	defaultChatModel  = "qwen2.5:7b"
)

// openAITool OpenAI兼容的工具描述
type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Tools       []openAITool      `json:"tools,omitempty"`
}

type chatCompletionMessage struct {
	Role      string         `json:"role"`
	Content   *string        `json:"content"`
	ToolCalls []toolCallData `json:"tool_calls,omitempty"`
}

type toolCallData struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      chatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
}

// OpenAIChatModel 通过OpenAI兼容的/chat/completions端点生成回答，
// 默认对接本地Ollama。实现 model.ToolCallingChatModel。
type OpenAIChatModel struct {
	apiKey      string
	apiURL      string
	modelName   string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	boundTools  []openAITool
	logger      zerolog.Logger
}

// NewOpenAIChatModel 创建聊天模型客户端，apiKey可为空（Ollama不校验）
func NewOpenAIChatModel(cfg config.LLMConfig, logger zerolog.Logger) *OpenAIChatModel {
	apiURL := cfg.APIURL
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultChatAPIURL
	}
	modelName := cfg.Model
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultChatModel
	}

	return &OpenAIChatModel{
		apiKey:      cfg.APIKey,
		apiURL:      apiURL,
		modelName:   modelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger.With().Str("component", "chat-model").Logger(),
	}
}

// Generate 实现 model.ChatModel
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	reqPayload := chatCompletionRequest{
		Model:       m.modelName,
		Messages:    messages,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}
	if len(m.boundTools) > 0 {
		reqPayload.Tools = m.boundTools
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化聊天请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建聊天请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("调用聊天API失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取聊天API响应失败: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("聊天API返回 %s: %s", httpResp.Status, truncateForLog(respBody, 512))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("反序列化聊天API响应失败: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("聊天API返回空choices")
	}

	apiMessage := completion.Choices[0].Message
	content := ""
	if apiMessage.Content != nil {
		content = *apiMessage.Content
	}

	result := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: content,
	}
	if result.Role == "" {
		result.Role = schema.Assistant
	}
	if len(apiMessage.ToolCalls) > 0 {
		result.ToolCalls = make([]schema.ToolCall, len(apiMessage.ToolCalls))
		for i, tc := range apiMessage.ToolCalls {
			result.ToolCalls[i] = schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}

	m.logger.Debug().
		Str("model", completion.Model).
		Str("finish_reason", completion.Choices[0].FinishReason).
		Int("content_len", len(content)).
		Msg("聊天补全完成")
	return result, nil
}

// Stream 实现 model.ChatModel，问答路径用不到流式输出
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenAIChatModel 未实现流式输出")
}

// BindTools 把eino工具定义转成OpenAI兼容格式缓存起来
// 参数schema未知时退化为空对象，模型仍可按描述决定是否调用
func (m *OpenAIChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.boundTools = make([]openAITool, 0, len(tools))
	for _, info := range tools {
		if info == nil {
			continue
		}
		m.boundTools = append(m.boundTools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        info.Name,
				Description: info.Desc,
				Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
			},
		})
	}
	return nil
}

// WithTools 实现 model.ToolCallingChatModel
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := m.BindTools(tools); err != nil {
		return nil, err
	}
	return m, nil
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

func truncateForLog(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
