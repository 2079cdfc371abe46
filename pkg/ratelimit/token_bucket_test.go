package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTokenBucket_AllowExhaustsCapacity 令牌耗尽后Allow返回false
func TestTokenBucket_AllowExhaustsCapacity(t *testing.T) {
	tb := NewTokenBucket(60, 2)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "容量2的桶第三次立即取令牌应失败")
}

// TestTokenBucket_DefaultCapacity capacity<=0时默认取QPM的一半，至少为1
func TestTokenBucket_DefaultCapacity(t *testing.T) {
	tb := NewTokenBucket(10, 0)
	for i := 0; i < 5; i++ {
		tb.Allow()
	}
	assert.False(t, tb.Allow())

	tb = NewTokenBucket(1, 0)
	assert.True(t, tb.Allow(), "QPM=1时容量至少为1")
}

// TestTokenBucket_Refill 按流逝时间补充令牌
func TestTokenBucket_Refill(t *testing.T) {
	// 6000 QPM = 每10ms一个令牌
	tb := NewTokenBucket(6000, 1)
	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, tb.Allow(), "等待补充周期后应再次放行")
}

// TestTokenBucket_WaitBlocksUntilToken Wait阻塞到拿到令牌
func TestTokenBucket_WaitBlocksUntilToken(t *testing.T) {
	tb := NewTokenBucket(6000, 1)
	require.True(t, tb.Allow())

	start := time.Now()
	err := tb.Wait(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

// TestTokenBucket_WaitHonorsContext 上下文取消时Wait立即返回
func TestTokenBucket_WaitHonorsContext(t *testing.T) {
	// 每分钟1个令牌，取完后下一个要等很久
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestTokenBucket_DoRetriesTransientErrors 瞬时错误指数退避重试
func TestTokenBucket_DoRetriesTransientErrors(t *testing.T) {
	tb := NewTokenBucket(60000, 10).WithRetryPolicy(time.Millisecond, 3)

	attempts := 0
	err := tb.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("server returned 429")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

// TestTokenBucket_DoStopsOnPermanentError 非瞬时错误不重试
func TestTokenBucket_DoStopsOnPermanentError(t *testing.T) {
	tb := NewTokenBucket(60000, 10).WithRetryPolicy(time.Millisecond, 3)

	permanent := errors.New("invalid request payload")
	attempts := 0
	err := tb.Do(context.Background(), func() error {
		attempts++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

// TestTokenBucket_DoExhaustsRetries 重试次数用尽后返回最后一次错误
func TestTokenBucket_DoExhaustsRetries(t *testing.T) {
	tb := NewTokenBucket(60000, 10).WithRetryPolicy(time.Millisecond, 2)

	transient := errors.New("connection refused")
	attempts := 0
	err := tb.Do(context.Background(), func() error {
		attempts++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, attempts, "首次加2次重试")
}

// TestIsRetryable 错误文本分类
func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(errors.New("dial tcp: i/o timeout")))
	assert.True(t, isRetryable(errors.New("context deadline exceeded")))
	assert.True(t, isRetryable(errors.New("rate limit exceeded")))
	assert.True(t, isRetryable(errors.New("unexpected EOF")))
	assert.False(t, isRetryable(errors.New("invalid api key")))
	assert.False(t, isRetryable(nil))
}
