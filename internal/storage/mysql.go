package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/types"
)

var mysqlTracer = otel.Tracer("resume-rag-go/storage/mysql")

type gormSpanKey struct{}

// GormTracingPlugin GORM回调插件，为每次数据库操作开span
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: mysqlTracer, dbName: dbName}
}

func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 为全部CRUD操作类型注册前后回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after())
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 未命中是正常业务分支，不算错误
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			span.RecordError(db.Error)
			span.SetAttributes(attribute.String("error.type", "database_error"))
			span.SetStatus(codes.Error, db.Error.Error())
		}
	}
}

// MySQL 关系库适配器，保管提交记录、解析结果与分块行
type MySQL struct {
	db     *gorm.DB
	cfg    *config.MySQLConfig
	logger zerolog.Logger
}

// NewMySQL 连接MySQL并迁移表结构
func NewMySQL(cfg *config.MySQLConfig, zlog zerolog.Logger) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{
		db:     db,
		cfg:    cfg,
		logger: zlog.With().Str("component", "mysql").Logger(),
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	m.logger.Info().Str("database", cfg.Database).Msg("MySQL连接就绪，表结构已迁移")
	return m, nil
}

// autoMigrateSchema 迁移期间静默SQL日志，避免启动刷屏
func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(logger.Silent)})
	return silentDB.AutoMigrate(
		&models.ResumeSubmission{},
		&models.ResumeDocument{},
		&models.ResumeChunk{},
		&models.OutboxMessage{},
	)
}

// DB 返回GORM连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateSubmission 写入提交记录，主键冲突时视为幂等重放不报错
func (m *MySQL) CreateSubmission(ctx context.Context, tx *gorm.DB, submission *models.ResumeSubmission) error {
	db := m.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"submission_uuid"}),
	}).Create(submission).Error
}

// GetSubmission 按UUID取提交记录
func (m *MySQL) GetSubmission(ctx context.Context, submissionUUID string) (*models.ResumeSubmission, error) {
	var submission models.ResumeSubmission
	err := m.db.WithContext(ctx).
		Where("submission_uuid = ?", submissionUUID).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// UpdateProcessingStatus 推进提交记录的处理状态
func (m *MySQL) UpdateProcessingStatus(ctx context.Context, submissionUUID string, status string) error {
	return m.db.WithContext(ctx).
		Model(&models.ResumeSubmission{}).
		Where("submission_uuid = ?", submissionUUID).
		Update("processing_status", status).Error
}

// MarkSubmissionFailed 标记失败并留存错误信息
func (m *MySQL) MarkSubmissionFailed(ctx context.Context, submissionUUID string, cause error) error {
	updates := map[string]interface{}{
		"processing_status": models.StatusFailed,
	}
	if cause != nil {
		updates["error_message"] = cause.Error()
	}
	return m.db.WithContext(ctx).
		Model(&models.ResumeSubmission{}).
		Where("submission_uuid = ?", submissionUUID).
		Updates(updates).Error
}

// UpdateSubmissionFields 更新提交记录的多个字段
func (m *MySQL) UpdateSubmissionFields(ctx context.Context, tx *gorm.DB, submissionUUID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	db := m.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).
		Model(&models.ResumeSubmission{}).
		Where("submission_uuid = ?", submissionUUID).
		Updates(updates).Error
}

// SaveParsedDocument 落库解析结果，重复入库时整行覆盖
func (m *MySQL) SaveParsedDocument(ctx context.Context, tx *gorm.DB, submissionUUID string, record *types.ParsedRecord, parserVersion string) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.SaveParsedDocument",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.sql.table", "resume_documents"),
	)

	doc := models.ResumeDocument{
		SubmissionUUID: submissionUUID,
		PersonName:     record.Personal.Name,
		Email:          record.Personal.Email,
		Phone:          record.Personal.Phone,
		Location:       record.Personal.Location,
		ParserVersion:  parserVersion,
	}

	var err error
	if doc.CompaniesJSON, err = models.ToJSON(record.Companies); err != nil {
		return fmt.Errorf("序列化工作经历失败: %w", err)
	}
	if doc.SkillsJSON, err = models.ToJSON(record.Skills); err != nil {
		return fmt.Errorf("序列化技能失败: %w", err)
	}
	if doc.EducationJSON, err = models.ToJSON(record.Education); err != nil {
		return fmt.Errorf("序列化教育经历失败: %w", err)
	}
	if doc.CertsJSON, err = models.ToJSON(record.Certifications); err != nil {
		return fmt.Errorf("序列化证书失败: %w", err)
	}
	if doc.InterestsJSON, err = models.ToJSON(record.Interests); err != nil {
		return fmt.Errorf("序列化兴趣失败: %w", err)
	}
	if doc.ReferencesJSON, err = models.ToJSON(record.References); err != nil {
		return fmt.Errorf("序列化推荐人失败: %w", err)
	}
	if doc.StatsJSON, err = models.ToJSON(record.Stats); err != nil {
		return fmt.Errorf("序列化解析统计失败: %w", err)
	}

	db := m.db
	if tx != nil {
		db = tx
	}
	saveErr := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_uuid"}},
		UpdateAll: true,
	}).Create(&doc).Error
	if saveErr != nil {
		span.RecordError(saveErr)
		span.SetStatus(codes.Error, saveErr.Error())
		return saveErr
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetParsedDocument 按UUID取解析结果
func (m *MySQL) GetParsedDocument(ctx context.Context, submissionUUID string) (*models.ResumeDocument, error) {
	var doc models.ResumeDocument
	err := m.db.WithContext(ctx).
		Where("submission_uuid = ?", submissionUUID).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveChunks 落库分块行，pointIDs与chunks一一对应时附带向量点ID
// 重复入库时按(submission_uuid, chunk_index)覆盖
func (m *MySQL) SaveChunks(ctx context.Context, tx *gorm.DB, submissionUUID string, chunks []types.Chunk, pointIDs []string) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(pointIDs) > 0 && len(pointIDs) != len(chunks) {
		return fmt.Errorf("chunks与pointIDs长度不匹配: %d != %d", len(chunks), len(pointIDs))
	}

	rows := make([]models.ResumeChunk, len(chunks))
	for i, chunk := range chunks {
		row := models.ResumeChunk{
			SubmissionUUID: submissionUUID,
			ChunkIndex:     i,
			Section:        chunk.Metadata[constants.MetaKeySection],
			ChunkText:      chunk.Text,
		}
		if len(pointIDs) > 0 && pointIDs[i] != "" {
			pid := pointIDs[i]
			row.PointID = &pid
		}
		rows[i] = row
	}

	db := m.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_uuid"}, {Name: "chunk_index"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

// GetChunksBySubmission 取某次提交的全部分块行，按块序号排序
func (m *MySQL) GetChunksBySubmission(ctx context.Context, submissionUUID string) ([]models.ResumeChunk, error) {
	var rows []models.ResumeChunk
	err := m.db.WithContext(ctx).
		Where("submission_uuid = ?", submissionUUID).
		Order("chunk_index ASC").
		Find(&rows).Error
	return rows, err
}

// EnqueueOutboxMessage 在事务内写入待发布事件
func (m *MySQL) EnqueueOutboxMessage(tx *gorm.DB, msg *models.OutboxMessage) error {
	return tx.Create(msg).Error
}
