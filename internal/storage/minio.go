package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/tracing"
)

var minioTracer = otel.Tracer("resume-rag-go/storage/minio")

// ObjectStorage 对象存储操作接口
type ObjectStorage interface {
	UploadResumeFile(ctx context.Context, submissionUUID string, originalName string, data []byte) (string, error)
	UploadResumeFileStreaming(ctx context.Context, submissionUUID string, originalName string, reader io.Reader, size int64) (objectKey string, md5Hex string, err error)
	UploadParsedText(ctx context.Context, submissionUUID string, text string) (string, error)
	UploadParsedRecord(ctx context.Context, submissionUUID string, recordJSON []byte) (string, error)
	GetResumeFile(ctx context.Context, objectKey string) ([]byte, error)
	GetParsedText(ctx context.Context, submissionUUID string) (string, error)
	GetPresignedURL(ctx context.Context, bucket, objectKey string, expiry time.Duration) (string, error)
	DeleteFile(ctx context.Context, bucket, objectKey string) error
}

// MinIO 对象存储适配器，原始简历与解析文本分桶存放
type MinIO struct {
	client *minio.Client
	config *config.MinIOConfig
	logger zerolog.Logger
}

// NewMinIO 创建MinIO适配器并确保桶与生命周期规则就位
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if cfg.OriginalsBucket == "" || cfg.ParsedTextBucket == "" {
		return nil, fmt.Errorf("MinIO桶名不能为空: originals=%q parsed=%q", cfg.OriginalsBucket, cfg.ParsedTextBucket)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "minio").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.ensureBucket(ctx, cfg.OriginalsBucket, cfg.OriginalFileExpireDays); err != nil {
		return nil, err
	}
	if err := m.ensureBucket(ctx, cfg.ParsedTextBucket, cfg.ParsedTextExpireDays); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("originals_bucket", cfg.OriginalsBucket).
		Str("parsed_bucket", cfg.ParsedTextBucket).
		Msg("MinIO适配器初始化完成")
	return m, nil
}

// ensureBucket 确保桶存在，expireDays>0时挂生命周期规则
func (m *MinIO) ensureBucket(ctx context.Context, bucket string, expireDays int) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("检查桶 %s 失败: %w", bucket, err)
	}
	if !exists {
		opts := minio.MakeBucketOptions{Region: m.config.Location}
		if err := m.client.MakeBucket(ctx, bucket, opts); err != nil {
			// 并发启动时可能刚被别的实例建好
			exists, errCheck := m.client.BucketExists(ctx, bucket)
			if errCheck != nil || !exists {
				return fmt.Errorf("创建桶 %s 失败: %w", bucket, err)
			}
		}
		m.logger.Info().Str("bucket", bucket).Msg("创建桶")
	}

	if expireDays <= 0 {
		return nil
	}
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:         "expire-" + bucket,
			Status:     "Enabled",
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(expireDays)},
		},
	}
	if err := m.client.SetBucketLifecycle(ctx, bucket, lc); err != nil {
		// 生命周期失败不阻断启动，部分部署的MinIO不支持
		m.logger.Warn().Err(err).Str("bucket", bucket).Msg("设置生命周期规则失败")
	}
	return nil
}

// OriginalsBucket 原始简历桶名
func (m *MinIO) OriginalsBucket() string {
	return m.config.OriginalsBucket
}

// ParsedTextBucket 解析文本桶名
func (m *MinIO) ParsedTextBucket() string {
	return m.config.ParsedTextBucket
}

// resumeObjectKey 原始简历对象键，保留原始扩展名
func resumeObjectKey(submissionUUID, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("resume/%s/original%s", submissionUUID, ext)
}

// parsedTextObjectKey 解析文本对象键
func parsedTextObjectKey(submissionUUID string) string {
	return fmt.Sprintf("resume/%s/parsed_text.txt", submissionUUID)
}

// parsedRecordObjectKey 解析结果JSON对象键，排障用
func parsedRecordObjectKey(submissionUUID string) string {
	return fmt.Sprintf("resume/%s/parsed_record.json", submissionUUID)
}

// UploadResumeFile 上传原始简历文件，返回对象键
func (m *MinIO) UploadResumeFile(ctx context.Context, submissionUUID string, originalName string, data []byte) (string, error) {
	objectKey := resumeObjectKey(submissionUUID, originalName)
	_, md5Hex, err := m.putObject(ctx, m.config.OriginalsBucket, objectKey, bytes.NewReader(data), int64(len(data)), getContentType(originalName))
	if err != nil {
		return "", err
	}
	m.logger.Debug().
		Str("submission_uuid", submissionUUID).
		Str("object_key", objectKey).
		Str("md5", md5Hex).
		Int("size", len(data)).
		Msg("原始简历上传完成")
	return objectKey, nil
}

// UploadResumeFileStreaming 流式上传原始简历并顺带计算MD5
// 上传与摘要共用一次读取，避免大文件读两遍
func (m *MinIO) UploadResumeFileStreaming(ctx context.Context, submissionUUID string, originalName string, reader io.Reader, size int64) (string, string, error) {
	objectKey := resumeObjectKey(submissionUUID, originalName)
	_, md5Hex, err := m.putObject(ctx, m.config.OriginalsBucket, objectKey, reader, size, getContentType(originalName))
	if err != nil {
		return "", "", err
	}
	return objectKey, md5Hex, nil
}

// UploadParsedText 上传解析出的纯文本，返回对象键
func (m *MinIO) UploadParsedText(ctx context.Context, submissionUUID string, text string) (string, error) {
	objectKey := parsedTextObjectKey(submissionUUID)
	_, _, err := m.putObject(ctx, m.config.ParsedTextBucket, objectKey, strings.NewReader(text), int64(len(text)), "text/plain; charset=utf-8")
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

// putObject 统一的上传入口，带span与MD5计算
func (m *MinIO) putObject(ctx context.Context, bucket, objectKey string, reader io.Reader, size int64, contentType string) (minio.UploadInfo, string, error) {
	ctx, span := minioTracer.Start(ctx, "minio.PutObject")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", bucket),
		attribute.String("minio.object_key", objectKey),
		attribute.Int64("minio.size", size),
	)

	hasher := md5.New()
	tee := io.TeeReader(reader, hasher)

	info, err := m.client.PutObject(ctx, bucket, objectKey, tee, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal,
			attribute.String("minio.operation", "put_object"))
		return minio.UploadInfo{}, "", fmt.Errorf("上传对象 %s/%s 失败: %w", bucket, objectKey, err)
	}
	return info, hex.EncodeToString(hasher.Sum(nil)), nil
}

// UploadParsedRecord 上传解析结果JSON，与解析文本同桶存放
func (m *MinIO) UploadParsedRecord(ctx context.Context, submissionUUID string, recordJSON []byte) (string, error) {
	objectKey := parsedRecordObjectKey(submissionUUID)
	_, _, err := m.putObject(ctx, m.config.ParsedTextBucket, objectKey, bytes.NewReader(recordJSON), int64(len(recordJSON)), "application/json")
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

// GetResumeFile 下载原始简历文件
func (m *MinIO) GetResumeFile(ctx context.Context, objectKey string) ([]byte, error) {
	return m.getObject(ctx, m.config.OriginalsBucket, objectKey)
}

// GetParsedText 下载解析文本
func (m *MinIO) GetParsedText(ctx context.Context, submissionUUID string) (string, error) {
	data, err := m.getObject(ctx, m.config.ParsedTextBucket, parsedTextObjectKey(submissionUUID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *MinIO) getObject(ctx context.Context, bucket, objectKey string) ([]byte, error) {
	ctx, span := minioTracer.Start(ctx, "minio.GetObject")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", bucket),
		attribute.String("minio.object_key", objectKey),
	)

	obj, err := m.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal,
			attribute.String("minio.operation", "get_object"))
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal,
			attribute.String("minio.operation", "read_object"))
		return nil, fmt.Errorf("读取对象 %s/%s 失败: %w", bucket, objectKey, err)
	}
	span.SetAttributes(attribute.Int("minio.size", len(data)))
	return data, nil
}

// GetPresignedURL 生成带过期时间的预签名下载链接
func (m *MinIO) GetPresignedURL(ctx context.Context, bucket, objectKey string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	u, err := m.client.PresignedGetObject(ctx, bucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("生成预签名链接失败 %s/%s: %w", bucket, objectKey, err)
	}
	return u.String(), nil
}

// DeleteFile 删除对象
func (m *MinIO) DeleteFile(ctx context.Context, bucket, objectKey string) error {
	if err := m.client.RemoveObject(ctx, bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s/%s 失败: %w", bucket, objectKey, err)
	}
	m.logger.Debug().Str("bucket", bucket).Str("object_key", objectKey).Msg("对象已删除")
	return nil
}

// getContentType 根据扩展名推断Content-Type
func getContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
