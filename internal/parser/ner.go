package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EntityLabelPerson 人名实体标签
const EntityLabelPerson = "PERSON"

// Entity 命名实体识别结果中的一个实体
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// EntityRecognizer 命名实体识别协作方接口
// 姓名提取的兜底策略依赖它；实现不可用时调用方按"未识别到实体"处理，绝不中断解析
type EntityRecognizer interface {
	// Recognize 对一段文本做实体识别
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// HTTPEntityRecognizer 通过HTTP调用外部NLP服务（如spaCy服务器）做实体识别
type HTTPEntityRecognizer struct {
	serverURL  string
	httpClient *http.Client
}

// NEROption HTTPEntityRecognizer 构造选项
type NEROption func(*HTTPEntityRecognizer)

// WithNERTimeout 设置HTTP客户端超时
func WithNERTimeout(timeout time.Duration) NEROption {
	return func(r *HTTPEntityRecognizer) {
		r.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewHTTPEntityRecognizer 创建HTTP实体识别客户端
func NewHTTPEntityRecognizer(serverURL string, opts ...NEROption) *HTTPEntityRecognizer {
	r := &HTTPEntityRecognizer{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize 调用NLP服务的 /ner 接口
func (r *HTTPEntityRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	reqBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("编码NER请求失败: %w", err)
	}

	url := r.serverURL + "/ner"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("创建NER请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用NER服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NER服务返回非200状态码: %d", resp.StatusCode)
	}

	var result struct {
		Entities []Entity `json:"entities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解码NER响应失败: %w", err)
	}
	return result.Entities, nil
}
