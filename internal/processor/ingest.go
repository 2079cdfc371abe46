package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/tracing"
	"resume-rag-go/internal/types"
	"resume-rag-go/pkg/utils"
)

var tracer = otel.Tracer("resume-rag-go/processor")

// 摄取锁的保护时长，覆盖最慢的单份简历处理
const ingestLockTTL = 10 * time.Minute

// ResumeIngestor 简历入库流水线：下载、提取、解析、分块、向量化、落库
// 组件全部通过接口注入，测试时可逐个替换
type ResumeIngestor struct {
	extractor         TextExtractor
	parser            RecordParser
	chunkBuilder      ChunkBuilder
	structuredBuilder StructuredChunkBuilder
	embedder          TextEmbedder

	storage *storage.Storage

	parserVersion string
	debug         bool
	logger        zerolog.Logger
}

// NewResumeIngestor 组装入库流水线
func NewResumeIngestor(comp *Components, set *Settings, opts ...SettingOpt) (*ResumeIngestor, error) {
	for _, opt := range opts {
		opt(set)
	}
	if comp.Storage == nil {
		return nil, fmt.Errorf("Storage 依赖不能为空")
	}
	if set.ParserVersion == "" {
		set.ParserVersion = constants.DefaultParserVer
	}

	return &ResumeIngestor{
		extractor:         comp.TextExtractor,
		parser:            comp.RecordParser,
		chunkBuilder:      comp.ChunkBuilder,
		structuredBuilder: comp.StructuredBuilder,
		embedder:          comp.Embedder,
		storage:           comp.Storage,
		parserVersion:     set.ParserVersion,
		debug:             set.Debug,
		logger:            set.Logger.With().Str("component", "ingestor").Logger(),
	}, nil
}

// Embedder 暴露嵌入器给问答服务复用，避免重复建连
func (ri *ResumeIngestor) Embedder() TextEmbedder {
	return ri.embedder
}

// ProcessUploadedResume 消费一条上传事件，跑完整条入库流水线
// 返回nil表示消息可以ack（包括内容重复这类正常跳过）；返回错误则nack重试
func (ri *ResumeIngestor) ProcessUploadedResume(ctx context.Context, message storage.ResumeUploadMessage) error {
	ctx, span := tracer.Start(ctx, "ResumeIngestor.ProcessUploadedResume",
		trace.WithAttributes(attribute.String("submission_uuid", message.SubmissionUUID)))
	defer span.End()

	if message.SubmissionUUID == "" {
		err := fmt.Errorf("上传事件缺少submission_uuid")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		// 无法定位提交，重试也没用，直接ack丢弃
		ri.logger.Error().Err(err).Msg("丢弃无效上传事件")
		return nil
	}
	if ri.extractor == nil || ri.parser == nil || ri.chunkBuilder == nil || ri.embedder == nil {
		return fmt.Errorf("流水线组件未完整初始化")
	}

	// 同一提交同一时间只允许一个worker处理
	lockValue, err := ri.storage.Redis.AcquireIngestLock(ctx, message.SubmissionUUID, ingestLockTTL)
	if err != nil {
		return fmt.Errorf("获取摄取锁失败: %w", err)
	}
	if lockValue == "" {
		span.AddEvent("ingest lock held elsewhere")
		return newIngestError(ErrIngestLocked, message.SubmissionUUID, "lock", "")
	}
	defer func() {
		released, relErr := ri.storage.Redis.ReleaseIngestLock(context.WithoutCancel(ctx), message.SubmissionUUID, lockValue)
		if relErr != nil || !released {
			ri.logger.Warn().Err(relErr).Str("submission_uuid", message.SubmissionUUID).Msg("释放摄取锁失败")
		}
	}()

	err = ri.ingest(ctx, message)
	if err != nil {
		if errors.Is(err, ErrDuplicateContent) {
			// 重复内容：状态已标记，消息正常确认
			span.AddEvent("duplicate content skipped")
			return nil
		}
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		ri.failSubmission(ctx, message.SubmissionUUID, message.RawFileMD5, err)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ingest 实际的流水线步骤，失败时由调用方统一标记状态
func (ri *ResumeIngestor) ingest(ctx context.Context, message storage.ResumeUploadMessage) error {
	submissionUUID := message.SubmissionUUID

	if err := ri.storage.MySQL.UpdateProcessingStatus(ctx, submissionUUID, models.StatusParsing); err != nil {
		return NewUpdateError(submissionUUID, err.Error())
	}

	// 1. 下载原始文件并提取文本
	text, textMD5, err := ri.extractAndDeduplicate(ctx, message)
	if err != nil {
		return err
	}

	// 2. 解析为结构化记录。解析是全函数：垃圾文本得到空记录，不是错误
	record := ri.parser.Parse(ctx, text)
	ri.logDebug().
		Str("submission_uuid", submissionUUID).
		Int("companies", len(record.Companies)).
		Int("skills", len(record.Skills)).
		Msg("解析完成")

	// 3. 落库解析结果，同时把JSON留档到对象存储便于排障
	err = ri.storage.MySQL.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ri.storage.MySQL.SaveParsedDocument(ctx, tx, submissionUUID, record, ri.parserVersion); err != nil {
			return err
		}
		return ri.storage.MySQL.UpdateSubmissionFields(ctx, tx, submissionUUID, map[string]interface{}{
			"raw_text_md5":      textMD5,
			"parser_version":    ri.parserVersion,
			"processing_status": models.StatusParsed,
		})
	})
	if err != nil {
		return NewUpdateError(submissionUUID, err.Error())
	}

	if recordJSON, marshalErr := json.Marshal(record); marshalErr == nil {
		if _, artifactErr := ri.storage.MinIO.UploadParsedRecord(ctx, submissionUUID, recordJSON); artifactErr != nil {
			// 留档失败不阻断入库
			ri.logger.Warn().Err(artifactErr).Str("submission_uuid", submissionUUID).Msg("上传解析结果留档失败")
		}
	}

	// 4. 分块并向量化入库
	chunks := ri.chunkBuilder.BuildChunks(record)
	if err := ri.storage.MySQL.UpdateProcessingStatus(ctx, submissionUUID, models.StatusChunked); err != nil {
		return NewUpdateError(submissionUUID, err.Error())
	}

	pointIDs, err := ri.embedAndStore(ctx, submissionUUID, chunks)
	if err != nil {
		return err
	}

	if err := ri.storage.MySQL.UpdateProcessingStatus(ctx, submissionUUID, models.StatusCompleted); err != nil {
		return NewUpdateError(submissionUUID, err.Error())
	}
	ri.logger.Info().
		Str("submission_uuid", submissionUUID).
		Int("chunks", len(chunks)).
		Int("points", len(pointIDs)).
		Msg("简历入库完成")
	return nil
}

// extractAndDeduplicate 下载、提取文本、做解析文本级去重
// 重复内容返回 ErrDuplicateContent
func (ri *ResumeIngestor) extractAndDeduplicate(ctx context.Context, message storage.ResumeUploadMessage) (string, string, error) {
	ctx, span := tracer.Start(ctx, "ResumeIngestor.extractAndDeduplicate")
	defer span.End()
	submissionUUID := message.SubmissionUUID

	fileBytes, err := ri.storage.MinIO.GetResumeFile(ctx, message.OriginalFilePathOSS)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return "", "", NewDownloadError(submissionUUID, err.Error())
	}
	span.AddEvent("file downloaded", trace.WithAttributes(attribute.Int("size", len(fileBytes))))

	text, _, err := ri.extractor.ExtractTextFromReader(ctx, bytes.NewReader(fileBytes), message.OriginalFilePathOSS, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtractor)
		return "", "", NewExtractError(submissionUUID, err.Error())
	}
	span.AddEvent("text extracted", trace.WithAttributes(attribute.Int("length", len(text))))

	textObjectKey, err := ri.storage.MinIO.UploadParsedText(ctx, submissionUUID, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return "", "", NewStoreError(submissionUUID, err.Error())
	}
	if err := ri.storage.MySQL.UpdateSubmissionFields(ctx, nil, submissionUUID, map[string]interface{}{
		"parsed_text_path_oss": textObjectKey,
	}); err != nil {
		return "", "", NewUpdateError(submissionUUID, err.Error())
	}

	textMD5 := utils.CalculateMD5([]byte(text))
	exists, err := ri.storage.Redis.CheckAndAddParsedTextMD5(ctx, textMD5)
	if err != nil {
		// 去重失效只降级，不阻断入库
		ri.logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("文本MD5去重检查失败，继续处理")
	} else if exists {
		if err := ri.storage.MySQL.UpdateProcessingStatus(ctx, submissionUUID, models.StatusDuplicate); err != nil {
			return "", "", NewUpdateError(submissionUUID, err.Error())
		}
		return "", "", newIngestError(ErrDuplicateContent, submissionUUID, "dedup", "parsed text md5 "+textMD5)
	}

	return text, textMD5, nil
}

// embedAndStore 分块向量化并写入向量库与分块表
// 零块是合法结果（解析不出任何结构的简历），直接短路返回
func (ri *ResumeIngestor) embedAndStore(ctx context.Context, submissionUUID string, chunks []types.Chunk) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ResumeIngestor.embedAndStore",
		trace.WithAttributes(attribute.Int("chunk_count", len(chunks))))
	defer span.End()

	if len(chunks) == 0 {
		span.AddEvent("no chunks to store")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := ri.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, NewEmbeddingError(submissionUUID, err.Error())
	}

	pointIDs, err := ri.storage.Qdrant.StoreChunks(ctx, submissionUUID, chunks, embeddings)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, NewVectorStoreError(submissionUUID, err.Error())
	}

	if err := ri.storage.MySQL.SaveChunks(ctx, nil, submissionUUID, chunks, pointIDs); err != nil {
		return nil, NewUpdateError(submissionUUID, err.Error())
	}
	return pointIDs, nil
}

// failSubmission 失败收尾：标记状态并回滚原始文件MD5，让用户可以重新上传
func (ri *ResumeIngestor) failSubmission(ctx context.Context, submissionUUID, rawFileMD5 string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := ri.storage.MySQL.MarkSubmissionFailed(ctx, submissionUUID, cause); err != nil {
		ri.logger.Error().Err(err).Str("submission_uuid", submissionUUID).Msg("标记提交失败状态时出错")
	}
	if rawFileMD5 != "" {
		if err := ri.storage.Redis.RemoveRawFileMD5(ctx, rawFileMD5); err != nil {
			ri.logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("回滚原始文件MD5失败")
		}
	}
}

// StartUploadConsumer 启动上传事件消费者，解码消息并驱动流水线
func (ri *ResumeIngestor) StartUploadConsumer(ctx context.Context) (<-chan struct{}, error) {
	if ri.storage.RabbitMQ == nil {
		return nil, fmt.Errorf("RabbitMQ未初始化")
	}
	if err := ri.storage.RabbitMQ.SetupResumeTopology(); err != nil {
		return nil, fmt.Errorf("声明队列拓扑失败: %w", err)
	}

	queueName := ri.storage.RabbitMQ.QueueName()
	return ri.storage.RabbitMQ.StartConsumer(ctx, queueName, func(msgCtx context.Context, body []byte) bool {
		var message storage.ResumeUploadMessage
		if err := json.Unmarshal(body, &message); err != nil {
			ri.logger.Error().Err(err).Msg("上传事件JSON解码失败，丢弃消息")
			return true
		}
		if err := ri.ProcessUploadedResume(msgCtx, message); err != nil {
			if errors.Is(err, ErrIngestLocked) {
				// 别的worker在处理，重新入队稍后再试
				return false
			}
			ri.logger.Error().Err(err).Str("submission_uuid", message.SubmissionUUID).Msg("处理上传事件失败")
			return false
		}
		return true
	})
}

func (ri *ResumeIngestor) logDebug() *zerolog.Event {
	if ri.debug {
		return ri.logger.Debug()
	}
	return ri.logger.Trace()
}
