// Package agent 实现基于检索增强的简历问答：
// 问题向量化后从Qdrant取top-k块，拼上下文交给聊天模型生成答案，
// 无会话的问答按问题MD5在Redis里缓存答案。
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"
	"resume-rag-go/pkg/ratelimit"
	"resume-rag-go/pkg/utils"
)

var answerTracer = otel.Tracer("resume-rag-go/agent")

// ErrEmptyQuestion 问题为空
var ErrEmptyQuestion = errors.New("问题不能为空")

const defaultSearchLimit = 5

// noContextAnswer 检索不到任何相关块时的固定回答，不浪费一次LLM调用
const noContextAnswer = "No relevant resume content was found for this question."

const systemPrompt = `You are a recruiting assistant. Answer the question using only the resume excerpts provided in the context. If the context does not contain the answer, say so plainly. Do not invent facts about candidates.`

// ChunkSearcher 向量检索入口，*storage.Qdrant 满足该接口
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, queryVector []float64, limit int, filter map[string]interface{}) ([]types.RetrievedChunk, error)
}

// AnswerCache 答案缓存，*storage.Redis 满足该接口
type AnswerCache interface {
	GetCachedAnswer(ctx context.Context, questionHash string) (string, error)
	CacheAnswer(ctx context.Context, questionHash, answer string) error
}

// AnswerRequest 一次问答请求
type AnswerRequest struct {
	Question string `json:"question"`
	// SessionID 非空时启用多轮对话，历史参与生成且跳过答案缓存
	SessionID string `json:"session_id,omitempty"`
	// Limit 检索块数，<=0时用配置默认值
	Limit int `json:"limit,omitempty"`
	// Filter 透传给Qdrant的payload过滤条件，键来自chunk元数据契约
	Filter map[string]interface{} `json:"filter,omitempty"`
}

// AnswerResult 问答结果及溯源
type AnswerResult struct {
	Answer  string                 `json:"answer"`
	Cached  bool                   `json:"cached"`
	Sources []types.RetrievedChunk `json:"sources,omitempty"`
}

// Answerer 检索增强问答服务
type Answerer struct {
	embedder    processor.TextEmbedder
	searcher    ChunkSearcher
	cache       AnswerCache
	chatModel   model.ToolCallingChatModel
	memory      ChatMemory
	searchLimit int
	logger      zerolog.Logger
}

// NewAnswerer 组装问答服务
// cache和memory可为空，分别关闭答案缓存与多轮会话
func NewAnswerer(embedder processor.TextEmbedder, searcher ChunkSearcher, chatModel model.ToolCallingChatModel,
	cache AnswerCache, memory ChatMemory, searchLimit int, logger zerolog.Logger) (*Answerer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("嵌入器不能为空")
	}
	if searcher == nil {
		return nil, fmt.Errorf("向量检索不能为空")
	}
	if chatModel == nil {
		return nil, fmt.Errorf("聊天模型不能为空")
	}
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &Answerer{
		embedder:    embedder,
		searcher:    searcher,
		cache:       cache,
		chatModel:   chatModel,
		memory:      memory,
		searchLimit: searchLimit,
		logger:      logger.With().Str("component", "answerer").Logger(),
	}, nil
}

// NewAnswererFromConfig 从配置和存储组件组装问答服务
func NewAnswererFromConfig(cfg *config.Config, storageManager *storage.Storage, embedder processor.TextEmbedder, logger zerolog.Logger) (*Answerer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if storageManager == nil || storageManager.Qdrant == nil {
		return nil, fmt.Errorf("Qdrant未初始化，无法提供问答")
	}

	chatModel := ratelimit.NewChatModelLimiter(NewOpenAIChatModel(cfg.LLM, logger), cfg.LLM.QPM)

	var cache AnswerCache
	var memory ChatMemory
	if storageManager.Redis != nil {
		cache = storageManager.Redis
		redisMemory, err := NewRedisChatMemory(storageManager.Redis.Client, "app:qa:session:", constants.AnswerCacheDuration)
		if err != nil {
			return nil, err
		}
		memory = redisMemory
	}

	return NewAnswerer(embedder, storageManager.Qdrant, chatModel, cache, memory, cfg.Qdrant.DefaultSearchLimit, logger)
}

// Answer 回答一个关于已入库简历的问题
func (a *Answerer) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	ctx, span := answerTracer.Start(ctx, "Answerer.Answer",
		trace.WithAttributes(attribute.Int("question.length", len(question))))
	defer span.End()

	// 多轮会话的答案依赖历史，不能复用缓存
	useCache := a.cache != nil && req.SessionID == ""
	questionHash := utils.CalculateMD5([]byte(question))

	if useCache {
		cached, err := a.cache.GetCachedAnswer(ctx, questionHash)
		if err == nil {
			span.AddEvent("answer cache hit")
			span.SetStatus(codes.Ok, "")
			return &AnswerResult{Answer: cached, Cached: true}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn().Err(err).Msg("读答案缓存失败，继续生成")
		}
	}

	retrieved, err := a.retrieve(ctx, question, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("retrieval.chunk_count", len(retrieved)))

	if len(retrieved) == 0 {
		span.AddEvent("no chunks retrieved")
		span.SetStatus(codes.Ok, "")
		return &AnswerResult{Answer: noContextAnswer}, nil
	}

	messages, err := a.buildMessages(ctx, question, req.SessionID, retrieved)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	reply, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("生成答案失败: %w", err)
	}
	answer := strings.TrimSpace(reply.Content)

	if useCache {
		if err := a.cache.CacheAnswer(ctx, questionHash, answer); err != nil {
			a.logger.Warn().Err(err).Msg("写答案缓存失败")
		}
	}
	a.rememberTurn(ctx, req.SessionID, question, answer)

	span.SetStatus(codes.Ok, "")
	a.logger.Info().
		Int("chunks", len(retrieved)).
		Bool("session", req.SessionID != "").
		Msg("问答完成")
	return &AnswerResult{Answer: answer, Sources: retrieved}, nil
}

// retrieve 把问题向量化并从Qdrant取top-k块
func (a *Answerer) retrieve(ctx context.Context, question string, req AnswerRequest) ([]types.RetrievedChunk, error) {
	vectors, err := a.embedder.EmbedStrings(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("问题向量化失败: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("问题向量化返回空向量")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = a.searchLimit
	}
	retrieved, err := a.searcher.SearchChunks(ctx, vectors[0], limit, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	return retrieved, nil
}

// buildMessages 组装发给聊天模型的消息序列：system + 历史 + 带上下文的问题
func (a *Answerer) buildMessages(ctx context.Context, question, sessionID string, retrieved []types.RetrievedChunk) ([]*schema.Message, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
	}

	if sessionID != "" && a.memory != nil {
		history, err := a.memory.GetHistory(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("读取会话历史失败: %w", err)
		}
		messages = append(messages, history...)
	}

	messages = append(messages, &schema.Message{
		Role:    schema.User,
		Content: formatQuestionWithContext(question, retrieved),
	})
	return messages, nil
}

// rememberTurn 把本轮问答写入会话历史，失败只记日志
func (a *Answerer) rememberTurn(ctx context.Context, sessionID, question, answer string) {
	if sessionID == "" || a.memory == nil {
		return
	}
	err := a.memory.AppendMessages(ctx, sessionID,
		&schema.Message{Role: schema.User, Content: question},
		&schema.Message{Role: schema.Assistant, Content: answer},
	)
	if err != nil {
		a.logger.Warn().Err(err).Str("session_id", sessionID).Msg("写会话历史失败")
	}
}

// formatQuestionWithContext 把检索块拼成编号上下文
// 历史消息里只存裸问题，上下文每轮重新检索拼接
func formatQuestionWithContext(question string, retrieved []types.RetrievedChunk) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, rc := range retrieved {
		person := rc.Chunk.Metadata[constants.MetaKeyPerson]
		section := rc.Chunk.Metadata[constants.MetaKeySection]
		fmt.Fprintf(&sb, "[%d] (%s / %s) %s\n", i+1, person, section, rc.Chunk.Text)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}
