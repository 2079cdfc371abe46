package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/tracing"
)

// StructuredIngestResult 结构化简历入库结果
type StructuredIngestResult struct {
	SubmissionUUID string   `json:"submission_uuid"`
	ChunkCount     int      `json:"chunk_count"`
	PointIDs       []string `json:"point_ids,omitempty"`
}

// ProcessStructuredResume 入库一份手工维护的结构化JSON简历
// 不走队列：同步构建分块、向量化并写入，适合低频的人工数据维护
func (ri *ResumeIngestor) ProcessStructuredResume(ctx context.Context, data []byte) (*StructuredIngestResult, error) {
	ctx, span := tracer.Start(ctx, "ResumeIngestor.ProcessStructuredResume")
	defer span.End()

	if ri.structuredBuilder == nil || ri.embedder == nil {
		return nil, fmt.Errorf("流水线组件未完整初始化")
	}

	chunks, err := ri.structuredBuilder.BuildChunksFromJSON(data)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, fmt.Errorf("解析结构化简历JSON失败: %w", err)
	}
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	submissionUUID := uuid.NewString()
	submission := &models.ResumeSubmission{
		SubmissionUUID:      submissionUUID,
		SubmissionTimestamp: time.Now(),
		SourceChannel:       "structured_json",
		ProcessingStatus:    models.StatusChunked,
		ParserVersion:       ri.parserVersion,
	}
	if err := ri.storage.MySQL.CreateSubmission(ctx, nil, submission); err != nil {
		return nil, NewUpdateError(submissionUUID, err.Error())
	}

	// 原始JSON留档，便于后续重建索引
	if _, artifactErr := ri.storage.MinIO.UploadParsedRecord(ctx, submissionUUID, data); artifactErr != nil {
		ri.logger.Warn().Err(artifactErr).Str("submission_uuid", submissionUUID).Msg("上传结构化简历留档失败")
	}

	pointIDs, err := ri.embedAndStore(ctx, submissionUUID, chunks)
	if err != nil {
		ri.failSubmission(ctx, submissionUUID, "", err)
		return nil, err
	}

	if err := ri.storage.MySQL.UpdateProcessingStatus(ctx, submissionUUID, models.StatusCompleted); err != nil {
		return nil, NewUpdateError(submissionUUID, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	ri.logger.Info().
		Str("submission_uuid", submissionUUID).
		Int("chunks", len(chunks)).
		Msg("结构化简历入库完成")
	return &StructuredIngestResult{
		SubmissionUUID: submissionUUID,
		ChunkCount:     len(chunks),
		PointIDs:       pointIDs,
	}, nil
}
