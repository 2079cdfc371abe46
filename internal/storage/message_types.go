package storage

import "time"

// EventTypeResumeUploaded 发件箱事件类型
const EventTypeResumeUploaded = "resume.uploaded"

// ResumeUploadMessage 简历上传事件，上传接口发布、入库消费者消费
type ResumeUploadMessage struct {
	SubmissionUUID      string    `json:"submission_uuid"`
	SubmissionTimestamp time.Time `json:"submission_timestamp"`
	SourceChannel       string    `json:"source_channel,omitempty"`
	OriginalFilename    string    `json:"original_filename"`
	OriginalFilePathOSS string    `json:"original_file_path_oss"`
	// 原始文件MD5，消费失败时用于回滚去重集合
	RawFileMD5 string `json:"raw_file_md5,omitempty"`
}

// ResumeProcessedMessage 入库完成事件，带最终状态与向量点ID
type ResumeProcessedMessage struct {
	SubmissionUUID    string   `json:"submission_uuid"`
	ProcessingStatus  string   `json:"processing_status"`
	ParsedTextPathOSS string   `json:"parsed_text_path_oss,omitempty"`
	PointIDs          []string `json:"point_ids,omitempty"`
	ProcessedAt       int64    `json:"processed_at,omitempty"`
	Error             string   `json:"error,omitempty"`
}
