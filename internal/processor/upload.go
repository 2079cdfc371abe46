package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/tracing"
)

// UploadResult 上传受理结果
type UploadResult struct {
	SubmissionUUID string `json:"submission_uuid"`
	Duplicate      bool   `json:"duplicate"`
	// 重复上传时指向已存在的提交
	ExistingSubmission string `json:"existing_submission,omitempty"`
}

// HandleUpload 受理一次简历上传：存文件、按原始文件MD5去重、
// 在一个事务里写提交记录和发件箱事件。实际解析由消费者异步完成。
func (ri *ResumeIngestor) HandleUpload(ctx context.Context, filename string, reader io.Reader, size int64, sourceChannel string) (*UploadResult, error) {
	ctx, span := tracer.Start(ctx, "ResumeIngestor.HandleUpload",
		trace.WithAttributes(attribute.Int64("file.size", size)))
	defer span.End()

	if ri.storage.MinIO == nil || ri.storage.MySQL == nil || ri.storage.Redis == nil {
		return nil, fmt.Errorf("存储组件未完整初始化")
	}
	if ri.storage.RabbitMQ == nil {
		return nil, fmt.Errorf("RabbitMQ未初始化，无法受理上传")
	}

	submissionUUID := uuid.NewString()
	span.SetAttributes(attribute.String("submission_uuid", submissionUUID))

	objectKey, md5Hex, err := ri.storage.MinIO.UploadResumeFileStreaming(ctx, submissionUUID, filename, reader, size)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, NewStoreError(submissionUUID, err.Error())
	}

	exists, err := ri.storage.Redis.CheckAndAddRawFileMD5(ctx, md5Hex)
	if err != nil {
		ri.logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("原始文件MD5去重检查失败，继续受理")
	} else if exists {
		// 同一文件已经上传过，清掉刚存的副本
		if delErr := ri.storage.MinIO.DeleteFile(ctx, ri.storage.MinIO.OriginalsBucket(), objectKey); delErr != nil {
			ri.logger.Warn().Err(delErr).Str("object_key", objectKey).Msg("清理重复上传文件失败")
		}
		existing, _ := ri.storage.Redis.GetSubmissionByMD5(ctx, md5Hex)
		span.AddEvent("duplicate file upload rejected")
		return &UploadResult{
			SubmissionUUID:     submissionUUID,
			Duplicate:          true,
			ExistingSubmission: existing,
		}, nil
	}

	if err := ri.storage.Redis.MapMD5ToSubmission(ctx, md5Hex, submissionUUID); err != nil {
		ri.logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("记录MD5到提交的映射失败")
	}

	now := time.Now()
	uploadMessage := storage.ResumeUploadMessage{
		SubmissionUUID:      submissionUUID,
		SubmissionTimestamp: now,
		SourceChannel:       sourceChannel,
		OriginalFilename:    filename,
		OriginalFilePathOSS: objectKey,
		RawFileMD5:          md5Hex,
	}
	payload, err := json.Marshal(uploadMessage)
	if err != nil {
		return nil, fmt.Errorf("序列化上传事件失败: %w", err)
	}

	err = ri.storage.MySQL.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission := &models.ResumeSubmission{
			SubmissionUUID:      submissionUUID,
			SubmissionTimestamp: now,
			SourceChannel:       sourceChannel,
			OriginalFilename:    filename,
			OriginalFilePathOSS: objectKey,
			RawFileMD5:          md5Hex,
			ProcessingStatus:    models.StatusPendingParsing,
		}
		if err := ri.storage.MySQL.CreateSubmission(ctx, tx, submission); err != nil {
			return err
		}
		// 事件随事务落盘，由发件箱中继异步发布，保证不丢
		return ri.storage.MySQL.EnqueueOutboxMessage(tx, &models.OutboxMessage{
			AggregateID:      submissionUUID,
			EventType:        storage.EventTypeResumeUploaded,
			Payload:          string(payload),
			TargetExchange:   ri.storage.RabbitMQ.ExchangeName(),
			TargetRoutingKey: ri.storage.RabbitMQ.UploadedRoutingKey(),
		})
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		// 受理失败，回滚去重集合，允许重新上传
		if rmErr := ri.storage.Redis.RemoveRawFileMD5(context.WithoutCancel(ctx), md5Hex); rmErr != nil {
			ri.logger.Warn().Err(rmErr).Str("submission_uuid", submissionUUID).Msg("回滚原始文件MD5失败")
		}
		return nil, NewUpdateError(submissionUUID, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	ri.logger.Info().
		Str("submission_uuid", submissionUUID).
		Str("filename", filename).
		Msg("简历上传已受理")
	return &UploadResult{SubmissionUUID: submissionUUID}, nil
}
