package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatModel struct {
	replies []error
	calls   int
}

func (s *stubChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	err := s.replies[s.calls]
	s.calls++
	if err != nil {
		return nil, err
	}
	return &schema.Message{Role: schema.Assistant, Content: "ok"}, nil
}

func (s *stubChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not used in tests")
}

func (s *stubChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return s, nil
}

// TestChatModelLimiter_GenerateRetries 瞬时错误透过令牌桶重试后成功
func TestChatModelLimiter_GenerateRetries(t *testing.T) {
	inner := &stubChatModel{replies: []error{
		errors.New("server returned 429"),
		nil,
	}}
	limiter := NewChatModelLimiter(inner, 60000).WithRetryPolicy(time.Millisecond, 3)

	reply, err := limiter.Generate(context.Background(), []*schema.Message{
		{Role: schema.User, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Content)
	assert.Equal(t, 2, inner.calls)
}

// TestChatModelLimiter_PermanentErrorPropagates 非瞬时错误原样上抛
func TestChatModelLimiter_PermanentErrorPropagates(t *testing.T) {
	permanent := errors.New("invalid api key")
	inner := &stubChatModel{replies: []error{permanent}}
	limiter := NewChatModelLimiter(inner, 60000)

	_, err := limiter.Generate(context.Background(), []*schema.Message{
		{Role: schema.User, Content: "hi"},
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, inner.calls)
}

// TestChatModelLimiter_WithToolsSharesBucket 绑定工具后的实例共享同一个令牌桶
func TestChatModelLimiter_WithToolsSharesBucket(t *testing.T) {
	inner := &stubChatModel{replies: []error{nil}}
	limiter := NewChatModelLimiter(inner, 60000)

	bound, err := limiter.WithTools([]*schema.ToolInfo{{Name: "search_resumes"}})
	require.NoError(t, err)

	boundLimiter, ok := bound.(*ChatModelLimiter)
	require.True(t, ok)
	assert.Same(t, limiter.bucket, boundLimiter.bucket)
}
