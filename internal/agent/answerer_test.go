package agent_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/agent"
	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"
)

// mockEmbedder 固定返回同一个向量
type mockEmbedder struct {
	vector []float64
	err    error
	calls  int
}

func (m *mockEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = m.vector
	}
	return vectors, nil
}

func (m *mockEmbedder) GetDimensions() int { return len(m.vector) }

// mockSearcher 记录检索参数并返回预设块
type mockSearcher struct {
	chunks     []types.RetrievedChunk
	err        error
	lastVector []float64
	lastLimit  int
	lastFilter map[string]interface{}
}

func (m *mockSearcher) SearchChunks(_ context.Context, queryVector []float64, limit int, filter map[string]interface{}) ([]types.RetrievedChunk, error) {
	m.lastVector = queryVector
	m.lastLimit = limit
	m.lastFilter = filter
	return m.chunks, m.err
}

// mockChatModel 记录收到的消息序列并返回预设回答
type mockChatModel struct {
	reply    string
	err      error
	calls    int
	lastMsgs []*schema.Message
}

func (m *mockChatModel) Generate(_ context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls++
	m.lastMsgs = messages
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.reply}, nil
}

func (m *mockChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("未实现")
}

func (m *mockChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// mockAnswerCache 进程内答案缓存，未命中返回 storage.ErrNotFound
type mockAnswerCache struct {
	answers map[string]string
}

func newMockAnswerCache() *mockAnswerCache {
	return &mockAnswerCache{answers: make(map[string]string)}
}

func (m *mockAnswerCache) GetCachedAnswer(_ context.Context, questionHash string) (string, error) {
	if answer, ok := m.answers[questionHash]; ok {
		return answer, nil
	}
	return "", storage.ErrNotFound
}

func (m *mockAnswerCache) CacheAnswer(_ context.Context, questionHash, answer string) error {
	m.answers[questionHash] = answer
	return nil
}

func retrievedChunk(text, person, section string) types.RetrievedChunk {
	return types.RetrievedChunk{
		Chunk: types.Chunk{
			Text: text,
			Metadata: map[string]string{
				constants.MetaKeyPerson:  person,
				constants.MetaKeySection: section,
			},
		},
		Score: 0.9,
	}
}

func newTestAnswerer(t *testing.T, embedder *mockEmbedder, searcher *mockSearcher,
	chatModel *mockChatModel, cache agent.AnswerCache, memory agent.ChatMemory) *agent.Answerer {
	t.Helper()
	a, err := agent.NewAnswerer(embedder, searcher, chatModel, cache, memory, 5, zerolog.Nop())
	require.NoError(t, err)
	return a
}

// TestNewAnswerer_Validation 必备协作方缺失时拒绝组装
func TestNewAnswerer_Validation(t *testing.T) {
	embedder := &mockEmbedder{vector: []float64{0.1}}
	searcher := &mockSearcher{}
	chatModel := &mockChatModel{}

	_, err := agent.NewAnswerer(nil, searcher, chatModel, nil, nil, 5, zerolog.Nop())
	assert.Error(t, err)
	_, err = agent.NewAnswerer(embedder, nil, chatModel, nil, nil, 5, zerolog.Nop())
	assert.Error(t, err)
	_, err = agent.NewAnswerer(embedder, searcher, nil, nil, nil, 5, zerolog.Nop())
	assert.Error(t, err)
	// 缓存和会话存储是可选的
	_, err = agent.NewAnswerer(embedder, searcher, chatModel, nil, nil, 0, zerolog.Nop())
	assert.NoError(t, err)
}

// TestAnswer_EmptyQuestion 空问题直接拒绝
func TestAnswer_EmptyQuestion(t *testing.T) {
	a := newTestAnswerer(t,
		&mockEmbedder{vector: []float64{0.1}}, &mockSearcher{}, &mockChatModel{}, nil, nil)

	_, err := a.Answer(context.Background(), agent.AnswerRequest{Question: "   "})
	assert.ErrorIs(t, err, agent.ErrEmptyQuestion)
}

// TestAnswer_NoChunksSkipsLLM 检索不到块时返回固定回答，不浪费LLM调用
func TestAnswer_NoChunksSkipsLLM(t *testing.T) {
	chatModel := &mockChatModel{reply: "should not be called"}
	a := newTestAnswerer(t,
		&mockEmbedder{vector: []float64{0.1, 0.2}}, &mockSearcher{}, chatModel, nil, nil)

	result, err := a.Answer(context.Background(), agent.AnswerRequest{Question: "Who knows Go?"})
	require.NoError(t, err)
	assert.Equal(t, "No relevant resume content was found for this question.", result.Answer)
	assert.False(t, result.Cached)
	assert.Zero(t, chatModel.calls, "零块时不应调用聊天模型")
}

// TestAnswer_FullFlow 检索、拼上下文、生成、写缓存的完整链路
func TestAnswer_FullFlow(t *testing.T) {
	searcher := &mockSearcher{chunks: []types.RetrievedChunk{
		retrievedChunk("John Smith is proficient in: Go, AWS", "John Smith", "skills"),
		retrievedChunk("John Smith worked at Globex", "John Smith", "experience"),
	}}
	chatModel := &mockChatModel{reply: "  John Smith knows Go.  "}
	cache := newMockAnswerCache()
	a := newTestAnswerer(t, &mockEmbedder{vector: []float64{0.1, 0.2}}, searcher, chatModel, cache, nil)

	result, err := a.Answer(context.Background(), agent.AnswerRequest{
		Question: "Who knows Go?",
		Limit:    3,
		Filter:   map[string]interface{}{"must": "something"},
	})
	require.NoError(t, err)

	assert.Equal(t, "John Smith knows Go.", result.Answer, "回答应去除首尾空白")
	assert.False(t, result.Cached)
	assert.Len(t, result.Sources, 2)

	// 检索参数透传
	assert.Equal(t, []float64{0.1, 0.2}, searcher.lastVector)
	assert.Equal(t, 3, searcher.lastLimit)
	assert.NotNil(t, searcher.lastFilter)

	// 消息序列：system + 带编号上下文的问题
	require.Len(t, chatModel.lastMsgs, 2)
	assert.Equal(t, schema.System, chatModel.lastMsgs[0].Role)
	userMsg := chatModel.lastMsgs[1]
	assert.Equal(t, schema.User, userMsg.Role)
	assert.Contains(t, userMsg.Content, "[1] (John Smith / skills) John Smith is proficient in: Go, AWS")
	assert.Contains(t, userMsg.Content, "[2] (John Smith / experience)")
	assert.Contains(t, userMsg.Content, "Question: Who knows Go?")

	assert.Len(t, cache.answers, 1, "无会话问答的答案应写入缓存")
}

// TestAnswer_CacheHit 命中缓存直接返回，不做检索和生成
func TestAnswer_CacheHit(t *testing.T) {
	searcher := &mockSearcher{chunks: []types.RetrievedChunk{
		retrievedChunk("text", "John Smith", "skills"),
	}}
	chatModel := &mockChatModel{reply: "fresh answer"}
	cache := newMockAnswerCache()
	embedder := &mockEmbedder{vector: []float64{0.1}}
	a := newTestAnswerer(t, embedder, searcher, chatModel, cache, nil)

	// 第一次生成并写缓存
	first, err := a.Answer(context.Background(), agent.AnswerRequest{Question: "Who knows Go?"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// 第二次同一问题命中缓存
	second, err := a.Answer(context.Background(), agent.AnswerRequest{Question: "Who knows Go?"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, chatModel.calls, "缓存命中后不应再调用聊天模型")
	assert.Equal(t, 1, embedder.calls, "缓存命中后不应再做向量化")
}

// TestAnswer_SessionBypassesCache 多轮会话的答案依赖历史，不能复用缓存
func TestAnswer_SessionBypassesCache(t *testing.T) {
	searcher := &mockSearcher{chunks: []types.RetrievedChunk{
		retrievedChunk("text", "John Smith", "skills"),
	}}
	chatModel := &mockChatModel{reply: "answer"}
	cache := newMockAnswerCache()
	memory := agent.NewInMemoryChatMemory()
	a := newTestAnswerer(t, &mockEmbedder{vector: []float64{0.1}}, searcher, chatModel, cache, memory)

	req := agent.AnswerRequest{Question: "Who knows Go?", SessionID: "s1"}
	_, err := a.Answer(context.Background(), req)
	require.NoError(t, err)
	_, err = a.Answer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, chatModel.calls, "会话问答每轮都应重新生成")
	assert.Empty(t, cache.answers, "会话问答不应写答案缓存")
}

// TestAnswer_SessionHistoryInPrompt 会话历史进入后续轮次的消息序列
func TestAnswer_SessionHistoryInPrompt(t *testing.T) {
	searcher := &mockSearcher{chunks: []types.RetrievedChunk{
		retrievedChunk("text", "John Smith", "skills"),
	}}
	chatModel := &mockChatModel{reply: "first answer"}
	memory := agent.NewInMemoryChatMemory()
	a := newTestAnswerer(t, &mockEmbedder{vector: []float64{0.1}}, searcher, chatModel, nil, memory)

	ctx := context.Background()
	_, err := a.Answer(ctx, agent.AnswerRequest{Question: "Who knows Go?", SessionID: "s1"})
	require.NoError(t, err)

	// 历史里存的是裸问题加回答
	history, err := memory.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Who knows Go?", history[0].Content)
	assert.Equal(t, "first answer", history[1].Content)

	chatModel.reply = "second answer"
	_, err = a.Answer(ctx, agent.AnswerRequest{Question: "What about AWS?", SessionID: "s1"})
	require.NoError(t, err)

	// system + 两条历史 + 本轮带上下文的问题
	require.Len(t, chatModel.lastMsgs, 4)
	assert.Equal(t, "Who knows Go?", chatModel.lastMsgs[1].Content)
	assert.Equal(t, "first answer", chatModel.lastMsgs[2].Content)
	assert.Contains(t, chatModel.lastMsgs[3].Content, "What about AWS?")
}

// TestAnswer_EmbedderFailure 向量化失败要向上传播
func TestAnswer_EmbedderFailure(t *testing.T) {
	a := newTestAnswerer(t,
		&mockEmbedder{err: assert.AnError}, &mockSearcher{}, &mockChatModel{}, nil, nil)
	_, err := a.Answer(context.Background(), agent.AnswerRequest{Question: "Who knows Go?"})
	assert.Error(t, err)
}

// TestAnswer_DefaultSearchLimit 请求不带limit时用构造时的默认值
func TestAnswer_DefaultSearchLimit(t *testing.T) {
	searcher := &mockSearcher{chunks: []types.RetrievedChunk{
		retrievedChunk("text", "John Smith", "skills"),
	}}
	a := newTestAnswerer(t, &mockEmbedder{vector: []float64{0.1}}, searcher, &mockChatModel{reply: "ok"}, nil, nil)

	_, err := a.Answer(context.Background(), agent.AnswerRequest{Question: "Who knows Go?"})
	require.NoError(t, err)
	assert.Equal(t, 5, searcher.lastLimit)
}
