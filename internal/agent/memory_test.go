package agent_test

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/agent"
)

// TestInMemoryChatMemory_AppendAndGet 追加与读取的基本往返
func TestInMemoryChatMemory_AppendAndGet(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	ctx := context.Background()

	history, err := memory.GetHistory(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, history, "不存在的会话返回空切片")

	err = memory.AppendMessages(ctx, "s1",
		&schema.Message{Role: schema.User, Content: "Who knows Go?"},
		&schema.Message{Role: schema.Assistant, Content: "John Smith."},
	)
	require.NoError(t, err)

	history, err = memory.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, "John Smith.", history[1].Content)
}

// TestInMemoryChatMemory_RejectsNilMessage 空消息拒绝追加
func TestInMemoryChatMemory_RejectsNilMessage(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	err := memory.AppendMessages(context.Background(), "s1",
		&schema.Message{Role: schema.User, Content: "hi"}, nil)
	assert.Error(t, err)
}

// TestInMemoryChatMemory_GetHistoryReturnsCopy 返回的切片是副本，外部修改不污染存储
func TestInMemoryChatMemory_GetHistoryReturnsCopy(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	ctx := context.Background()
	require.NoError(t, memory.AppendMessages(ctx, "s1",
		&schema.Message{Role: schema.User, Content: "original"}))

	history, err := memory.GetHistory(ctx, "s1")
	require.NoError(t, err)
	history[0] = &schema.Message{Role: schema.User, Content: "tampered"}

	again, err := memory.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

// TestInMemoryChatMemory_ClearHistory 清空后会话不复存在，重复清空静默成功
func TestInMemoryChatMemory_ClearHistory(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	ctx := context.Background()
	require.NoError(t, memory.AppendMessages(ctx, "s1",
		&schema.Message{Role: schema.User, Content: "hi"}))

	require.NoError(t, memory.ClearHistory(ctx, "s1"))
	history, err := memory.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.NoError(t, memory.ClearHistory(ctx, "s1"))
}

// TestInMemoryChatMemory_SessionIsolation 不同会话互不可见
func TestInMemoryChatMemory_SessionIsolation(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	ctx := context.Background()
	require.NoError(t, memory.AppendMessages(ctx, "s1",
		&schema.Message{Role: schema.User, Content: "for s1"}))

	history, err := memory.GetHistory(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, history)
}
