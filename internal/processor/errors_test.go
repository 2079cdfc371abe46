package processor_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/processor"
)

// TestIngestError_Is 包装错误能用errors.Is按阶段判别
func TestIngestError_Is(t *testing.T) {
	err := processor.NewDownloadError("uuid-1", "minio unreachable")
	assert.ErrorIs(t, err, processor.ErrResumeDownloadFailed)
	assert.NotErrorIs(t, err, processor.ErrExtractTextFailed)

	assert.ErrorIs(t, processor.NewExtractError("uuid-1", ""), processor.ErrExtractTextFailed)
	assert.ErrorIs(t, processor.NewStoreError("uuid-1", ""), processor.ErrStoreTextFailed)
	assert.ErrorIs(t, processor.NewEmbeddingError("uuid-1", ""), processor.ErrEmbeddingFailed)
	assert.ErrorIs(t, processor.NewVectorStoreError("uuid-1", ""), processor.ErrVectorStoreFailed)
	assert.ErrorIs(t, processor.NewUpdateError("uuid-1", ""), processor.ErrUpdateStatusFailed)
}

// TestIngestError_IsThroughWrapping 再包一层fmt.Errorf也能判别
func TestIngestError_IsThroughWrapping(t *testing.T) {
	inner := processor.NewEmbeddingError("uuid-2", "ollama down")
	wrapped := fmt.Errorf("入库失败: %w", inner)
	assert.ErrorIs(t, wrapped, processor.ErrEmbeddingFailed)
}

// TestIngestError_Message 错误消息携带阶段与提交UUID
func TestIngestError_Message(t *testing.T) {
	err := processor.NewDownloadError("uuid-3", "bucket missing")
	msg := err.Error()
	assert.Contains(t, msg, "uuid-3")
	assert.Contains(t, msg, "download")
	assert.Contains(t, msg, "bucket missing")

	// Detail为空时省略尾部
	noDetail := processor.NewDownloadError("uuid-3", "")
	assert.NotContains(t, noDetail.Error(), ": ")
}

// TestIngestError_Unwrap Unwrap返回基础错误
func TestIngestError_Unwrap(t *testing.T) {
	err := processor.NewVectorStoreError("uuid-4", "")
	var ingestErr *processor.IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, "uuid-4", ingestErr.SubmissionUUID)
	assert.Equal(t, "vector_store", ingestErr.Op)
	assert.Equal(t, processor.ErrVectorStoreFailed, errors.Unwrap(err))
}
