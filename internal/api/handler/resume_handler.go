// Package handler 实现HTTP入口，把请求解包后转给入库流水线与问答服务
package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"resume-rag-go/internal/agent"
	"resume-rag-go/internal/config"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
)

// maxUploadBytes 上传文件大小上限，超过直接拒绝
const maxUploadBytes = 20 << 20

const defaultSourceChannel = "web_upload"

// ResumeHandler 简历相关HTTP处理器
type ResumeHandler struct {
	cfg      *config.Config
	storage  *storage.Storage
	ingestor *processor.ResumeIngestor
	answerer *agent.Answerer
	logger   zerolog.Logger
}

// NewResumeHandler 创建HTTP处理器
// answerer可为空，此时问答端点返回503
func NewResumeHandler(cfg *config.Config, storageManager *storage.Storage, ingestor *processor.ResumeIngestor, answerer *agent.Answerer, logger zerolog.Logger) *ResumeHandler {
	return &ResumeHandler{
		cfg:      cfg,
		storage:  storageManager,
		ingestor: ingestor,
		answerer: answerer,
		logger:   logger.With().Str("component", "http-handler").Logger(),
	}
}

// Upload 受理multipart简历上传
func (h *ResumeHandler) Upload(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		ctx.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件过大"})
		return
	}

	sourceChannel := ctx.PostForm("source_channel")
	if sourceChannel == "" {
		sourceChannel = defaultSourceChannel
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
		return
	}
	defer file.Close()

	result, err := h.ingestor.HandleUpload(c, fileHeader.Filename, file, fileHeader.Size, sourceChannel)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("受理上传失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	if result.Duplicate {
		ctx.JSON(consts.StatusOK, utils.H{
			"submission_uuid":     result.ExistingSubmission,
			"status":              "DUPLICATE_FILE_SKIPPED",
			"existing_submission": result.ExistingSubmission,
		})
		return
	}
	ctx.JSON(consts.StatusAccepted, utils.H{
		"submission_uuid": result.SubmissionUUID,
		"status":          "SUBMITTED_FOR_PROCESSING",
	})
}

// UploadStructured 受理已结构化的简历JSON，同步走分块+向量化
func (h *ResumeHandler) UploadStructured(c context.Context, ctx *app.RequestContext) {
	body := ctx.Request.Body()
	if len(body) == 0 {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不能为空"})
		return
	}
	if int64(len(body)) > maxUploadBytes {
		ctx.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "请求体过大"})
		return
	}

	result, err := h.ingestor.ProcessStructuredResume(c, body)
	if err != nil {
		h.logger.Error().Err(err).Msg("处理结构化简历失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{
		"submission_uuid": result.SubmissionUUID,
		"chunk_count":     result.ChunkCount,
		"point_ids":       result.PointIDs,
	})
}

// GetSubmission 查询一次提交的处理状态
func (h *ResumeHandler) GetSubmission(c context.Context, ctx *app.RequestContext) {
	submissionUUID := ctx.Param("uuid")
	submission, err := h.storage.MySQL.GetSubmission(c, submissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(consts.StatusNotFound, utils.H{"error": "提交不存在"})
			return
		}
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, submission)
}

// GetParsedRecord 查询提交对应的结构化解析结果
func (h *ResumeHandler) GetParsedRecord(c context.Context, ctx *app.RequestContext) {
	submissionUUID := ctx.Param("uuid")
	doc, err := h.storage.MySQL.GetParsedDocument(c, submissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(consts.StatusNotFound, utils.H{"error": "解析结果不存在"})
			return
		}
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, doc)
}

// GetChunks 查询提交产出的检索块
func (h *ResumeHandler) GetChunks(c context.Context, ctx *app.RequestContext) {
	submissionUUID := ctx.Param("uuid")
	chunks, err := h.storage.MySQL.GetChunksBySubmission(c, submissionUUID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"submission_uuid": submissionUUID, "chunks": chunks})
}

// DownloadOriginal 生成原始简历的预签名下载链接
func (h *ResumeHandler) DownloadOriginal(c context.Context, ctx *app.RequestContext) {
	submissionUUID := ctx.Param("uuid")
	submission, err := h.storage.MySQL.GetSubmission(c, submissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(consts.StatusNotFound, utils.H{"error": "提交不存在"})
			return
		}
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	url, err := h.storage.MinIO.GetPresignedURL(c, h.storage.MinIO.OriginalsBucket(), submission.OriginalFilePathOSS, 0)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"url": url})
}

// Ask 基于已入库简历回答问题
func (h *ResumeHandler) Ask(c context.Context, ctx *app.RequestContext) {
	if h.answerer == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "问答服务未启用"})
		return
	}

	var req agent.AnswerRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}

	result, err := h.answerer.Answer(c, req)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyQuestion) {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "问题不能为空"})
			return
		}
		h.logger.Error().Err(err).Msg("问答失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, result)
}

// Health 健康检查，探测各存储组件连通性
func (h *ResumeHandler) Health(c context.Context, ctx *app.RequestContext) {
	components := utils.H{}
	healthy := true

	if h.storage.Redis != nil {
		if err := h.storage.Redis.Ping(c); err != nil {
			components["redis"] = err.Error()
			healthy = false
		} else {
			components["redis"] = "ok"
		}
	}
	if h.storage.MySQL != nil {
		if db, err := h.storage.MySQL.DB().DB(); err != nil || db.PingContext(c) != nil {
			components["mysql"] = "unreachable"
			healthy = false
		} else {
			components["mysql"] = "ok"
		}
	}

	status := consts.StatusOK
	state := "ok"
	if !healthy {
		status = consts.StatusServiceUnavailable
		state = "degraded"
	}
	ctx.JSON(status, utils.H{"status": state, "components": components})
}
