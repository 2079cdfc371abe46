package constants

import "time"

const (
	// Application-level constants
	DefaultParserVer = "universal-1.0"

	// DefaultPosition 工作经历缺少职位时的默认值
	DefaultPosition = "Software Professional"
	// DateNotSpecified 工作经历缺少日期时的哨兵值
	DateNotSpecified = "Date not specified"

	// Storage-related constants
	RawFileMD5SetKey    = "resumes:file_md5s" // Redis Set key for storing raw file MD5s
	ParsedTextMD5SetKey = "resumes:text_md5s" // Redis Set key for storing parsed text MD5s
	AnswerCacheDuration = 24 * time.Hour
)

// Chunk 元数据键，是下游检索过滤的事实契约，不能改名
const (
	MetaKeySection     = "section"
	MetaKeyType        = "type"
	MetaKeyPerson      = "person"
	MetaKeySource      = "source"
	MetaKeyCompanyName = "company_name"
	MetaKeyPosition    = "position"
	MetaKeyDates       = "dates"
	MetaKeyDuration    = "duration"
	MetaKeyInstitution = "institution"
	MetaKeyDegree      = "degree"
	MetaKeyCategory    = "category"
	MetaKeyProjectName = "project_name"
	MetaKeyProjectType = "project_type"
)

// Chunk 的 section 取值
const (
	SectionPersonal       = "personal"
	SectionSummary        = "summary"
	SectionExperience     = "experience"
	SectionSkills         = "skills"
	SectionEducation      = "education"
	SectionProjects       = "projects"
	SectionCertifications = "certifications"
	SectionReferences     = "references"
	SectionInterests      = "interests"
)
