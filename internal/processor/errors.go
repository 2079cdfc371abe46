package processor

import (
	"errors"
	"fmt"
)

// 基础错误类型，供 errors.Is 判别
var (
	ErrResumeDownloadFailed = errors.New("下载简历失败")
	ErrExtractTextFailed    = errors.New("提取简历文本失败")
	ErrStoreTextFailed      = errors.New("上传解析文本失败")
	ErrEmbeddingFailed      = errors.New("向量化失败")
	ErrVectorStoreFailed    = errors.New("写入向量库失败")
	ErrUpdateStatusFailed   = errors.New("更新简历状态失败")

	// ErrDuplicateContent 内容重复是正常业务分支，调用方据此跳过而非重试
	ErrDuplicateContent = errors.New("简历内容重复")
	// ErrIngestLocked 同一提交正在被其他worker处理
	ErrIngestLocked = errors.New("提交正在处理中")
)

// IngestError 携带提交UUID与操作阶段的错误
type IngestError struct {
	SubmissionUUID string
	Op             string
	BaseErr        error
	Detail         string
}

func (e *IngestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %s", e.BaseErr, e.Op, e.SubmissionUUID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.SubmissionUUID)
}

func (e *IngestError) Unwrap() error {
	return e.BaseErr
}

func (e *IngestError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newIngestError(base error, uuid, op, detail string) error {
	return &IngestError{
		SubmissionUUID: uuid,
		Op:             op,
		BaseErr:        base,
		Detail:         detail,
	}
}

func NewDownloadError(uuid, detail string) error {
	return newIngestError(ErrResumeDownloadFailed, uuid, "download", detail)
}

func NewExtractError(uuid, detail string) error {
	return newIngestError(ErrExtractTextFailed, uuid, "extract", detail)
}

func NewStoreError(uuid, detail string) error {
	return newIngestError(ErrStoreTextFailed, uuid, "store", detail)
}

func NewEmbeddingError(uuid, detail string) error {
	return newIngestError(ErrEmbeddingFailed, uuid, "embed", detail)
}

func NewVectorStoreError(uuid, detail string) error {
	return newIngestError(ErrVectorStoreFailed, uuid, "vector_store", detail)
}

func NewUpdateError(uuid, detail string) error {
	return newIngestError(ErrUpdateStatusFailed, uuid, "update", detail)
}
