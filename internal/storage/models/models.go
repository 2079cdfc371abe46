package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ResumeSubmission 处理状态流转
const (
	StatusPendingParsing = "PENDING_PARSING"
	StatusParsing        = "PARSING"
	StatusParsed         = "PARSED"
	StatusChunked        = "CHUNKED"
	StatusVectorized     = "VECTORIZED"
	StatusCompleted      = "COMPLETED"
	StatusFailed         = "FAILED"
	StatusDuplicate      = "DUPLICATE_SKIPPED"
)

// ResumeSubmission 简历提交记录，一次上传对应一行
type ResumeSubmission struct {
	SubmissionUUID      string    `gorm:"type:char(36);primaryKey"`
	SubmissionTimestamp time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_rs_submission_timestamp"`
	SourceChannel       string    `gorm:"type:varchar(100)"`
	OriginalFilename    string    `gorm:"type:varchar(255)"`
	OriginalFilePathOSS string    `gorm:"type:varchar(1024)"`
	ParsedTextPathOSS   string    `gorm:"type:varchar(1024)"`
	RawFileMD5          string    `gorm:"type:char(32);index:idx_rs_raw_file_md5"`
	RawTextMD5          string    `gorm:"type:char(32);index:idx_rs_raw_text_md5"`
	ProcessingStatus    string    `gorm:"type:varchar(50);default:'PENDING_PARSING';index:idx_rs_processing_status"`
	ParserVersion       string    `gorm:"type:varchar(50)"`
	ErrorMessage        string    `gorm:"type:text"`
	CreatedAt           time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ResumeSubmission) TableName() string {
	return "resume_submissions"
}

// ResumeDocument 解析出的结构化简历，一次提交对应一行
// 列表字段以JSON列存放，结构与解析结果一一对应
type ResumeDocument struct {
	SubmissionUUID string         `gorm:"type:char(36);primaryKey"`
	PersonName     string         `gorm:"type:varchar(255);index:idx_rd_person_name"`
	Email          string         `gorm:"type:varchar(255)"`
	Phone          string         `gorm:"type:varchar(50)"`
	Location       string         `gorm:"type:varchar(255)"`
	CompaniesJSON  datatypes.JSON `gorm:"type:json"`
	SkillsJSON     datatypes.JSON `gorm:"type:json"`
	EducationJSON  datatypes.JSON `gorm:"type:json"`
	CertsJSON      datatypes.JSON `gorm:"type:json"`
	InterestsJSON  datatypes.JSON `gorm:"type:json"`
	ReferencesJSON datatypes.JSON `gorm:"type:json"`
	StatsJSON      datatypes.JSON `gorm:"type:json"`
	ParserVersion  string         `gorm:"type:varchar(50)"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	ResumeSubmission *ResumeSubmission `gorm:"foreignKey:SubmissionUUID;references:SubmissionUUID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ResumeDocument) TableName() string {
	return "resume_documents"
}

// ResumeChunk 简历分块文本表，每行对应向量库中的一个点
type ResumeChunk struct {
	ChunkDBID      uint64    `gorm:"primaryKey;autoIncrement"`
	SubmissionUUID string    `gorm:"type:char(36);not null;index:idx_rc_submission_uuid;uniqueIndex:idx_rc_submission_chunk,priority:1"`
	ChunkIndex     int       `gorm:"not null;uniqueIndex:idx_rc_submission_chunk,priority:2"`
	Section        string    `gorm:"type:varchar(50);not null;index:idx_rc_section"`
	ChunkText      string    `gorm:"type:text;not null"`
	PointID        *string   `gorm:"type:char(36);index:idx_rc_point_id"`
	CreatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	ResumeSubmission *ResumeSubmission `gorm:"foreignKey:SubmissionUUID;references:SubmissionUUID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ResumeChunk) TableName() string {
	return "resume_chunks"
}

// OutboxMessage 事务发件箱，保证MySQL写入与事件发布的最终一致
type OutboxMessage struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	AggregateID      string     `gorm:"type:varchar(36);not null;index"`
	EventType        string     `gorm:"type:varchar(255);not null"`
	Payload          string     `gorm:"type:json;not null"`
	TargetExchange   string     `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string     `gorm:"type:varchar(255);not null"`
	Status           string     `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_outbox_status_created_at"`
	RetryCount       int        `gorm:"default:0"`
	CreatedAt        time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created_at,sort:asc"`
	ProcessedAt      *time.Time `gorm:"type:datetime(6);null"`
	ErrorMessage     string     `gorm:"type:text"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// ToJSON 任意值转datatypes.JSON
func ToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
