package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelLimiter 给聊天模型加限流与重试的代理，实现 model.ToolCallingChatModel
// 本地Ollama并发能力有限，问答高峰时靠它排队而不是打爆后端
type ChatModelLimiter struct {
	inner  model.ToolCallingChatModel
	bucket *TokenBucket
}

// NewChatModelLimiter 包装聊天模型，qpm<=0时用默认30
func NewChatModelLimiter(inner model.ToolCallingChatModel, qpm int) *ChatModelLimiter {
	if qpm <= 0 {
		qpm = 30
	}
	return &ChatModelLimiter{
		inner:  inner,
		bucket: NewTokenBucket(qpm, 0),
	}
}

// WithRetryPolicy 调整重试策略
func (l *ChatModelLimiter) WithRetryPolicy(wait time.Duration, maxRetries int) *ChatModelLimiter {
	l.bucket.WithRetryPolicy(wait, maxRetries)
	return l
}

// Generate 实现 model.ChatModel
func (l *ChatModelLimiter) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var reply *schema.Message
	err := l.bucket.Do(ctx, func() error {
		var genErr error
		reply, genErr = l.inner.Generate(ctx, messages, options...)
		return genErr
	})
	return reply, err
}

// Stream 实现 model.ChatModel
func (l *ChatModelLimiter) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := l.bucket.Do(ctx, func() error {
		var streamErr error
		stream, streamErr = l.inner.Stream(ctx, messages, options...)
		return streamErr
	})
	return stream, err
}

// WithTools 实现 model.ToolCallingChatModel，复用同一个令牌桶
func (l *ChatModelLimiter) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound, err := l.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &ChatModelLimiter{inner: bound, bucket: l.bucket}, nil
}

var _ model.ToolCallingChatModel = (*ChatModelLimiter)(nil)
