package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
)

// ChatMemory 多轮问答的会话历史存储
type ChatMemory interface {
	// GetHistory 返回会话的全部历史，不存在的会话返回空切片
	GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error)

	// AppendMessages 把若干条消息追加到会话末尾
	AppendMessages(ctx context.Context, sessionID string, messages ...*schema.Message) error

	// ClearHistory 清空会话历史，会话不存在时静默成功
	ClearHistory(ctx context.Context, sessionID string) error
}

// RedisChatMemory 把会话历史存成Redis List，消息按JSON序列化
type RedisChatMemory struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisChatMemory 创建Redis会话存储，ttl为0表示历史不过期
func NewRedisChatMemory(client *redis.Client, keyPrefix string, ttl time.Duration) (*RedisChatMemory, error) {
	if client == nil {
		return nil, fmt.Errorf("redis客户端不能为空")
	}
	if keyPrefix == "" {
		keyPrefix = "app:qa:session:"
	}
	return &RedisChatMemory{client: client, keyPrefix: keyPrefix, ttl: ttl}, nil
}

func (m *RedisChatMemory) sessionKey(sessionID string) string {
	return m.keyPrefix + sessionID
}

// GetHistory 实现 ChatMemory
func (m *RedisChatMemory) GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	raw, err := m.client.LRange(ctx, m.sessionKey(sessionID), 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []*schema.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话 %s 历史失败: %w", sessionID, err)
	}

	messages := make([]*schema.Message, 0, len(raw))
	for _, item := range raw {
		var msg schema.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("反序列化会话 %s 的消息失败: %w", sessionID, err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// AppendMessages 实现 ChatMemory
// 追加与续期放在同一个事务管道里
func (m *RedisChatMemory) AppendMessages(ctx context.Context, sessionID string, messages ...*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}

	key := m.sessionKey(sessionID)
	pipe := m.client.TxPipeline()
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("会话 %s 不能追加空消息", sessionID)
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("序列化会话 %s 的消息失败: %w", sessionID, err)
		}
		pipe.RPush(ctx, key, data)
	}
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("追加会话 %s 历史失败: %w", sessionID, err)
	}
	return nil
}

// ClearHistory 实现 ChatMemory
func (m *RedisChatMemory) ClearHistory(ctx context.Context, sessionID string) error {
	if err := m.client.Del(ctx, m.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("清空会话 %s 历史失败: %w", sessionID, err)
	}
	return nil
}

var _ ChatMemory = (*RedisChatMemory)(nil)

// InMemoryChatMemory ChatMemory的进程内实现，测试和单机场景用
type InMemoryChatMemory struct {
	mu        sync.RWMutex
	histories map[string][]*schema.Message
}

// NewInMemoryChatMemory 创建进程内会话存储
func NewInMemoryChatMemory() *InMemoryChatMemory {
	return &InMemoryChatMemory{histories: make(map[string][]*schema.Message)}
}

// GetHistory 实现 ChatMemory
func (m *InMemoryChatMemory) GetHistory(_ context.Context, sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.histories[sessionID]
	cpy := make([]*schema.Message, len(history))
	copy(cpy, history)
	return cpy, nil
}

// AppendMessages 实现 ChatMemory
func (m *InMemoryChatMemory) AppendMessages(_ context.Context, sessionID string, messages ...*schema.Message) error {
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("会话 %s 不能追加空消息", sessionID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[sessionID] = append(m.histories[sessionID], messages...)
	return nil
}

// ClearHistory 实现 ChatMemory
func (m *InMemoryChatMemory) ClearHistory(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.histories, sessionID)
	return nil
}

var _ ChatMemory = (*InMemoryChatMemory)(nil)
