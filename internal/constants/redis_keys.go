package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// FileModulePrefix 文件模块
	FileModulePrefix = "file"
	// QAModulePrefix 问答模块
	QAModulePrefix = "qa"
	// IngestModulePrefix 摄取模块
	IngestModulePrefix = "ingest"

	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityAnswer 问答答案实体
	EntityAnswer = "answer"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityMD5ToUUID MD5到UUID的映射实体
	EntityMD5ToUUID = "md5_to_uuid"

	// KeyFileMD5Set 文件MD5去重集合 (SET)
	// 格式: app:file:dedup_set:{setName}
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet + ":%s"

	// KeyFileMD5ToUUID 文件MD5到提交UUID的映射 (STRING)
	// 格式: app:file:md5_to_uuid:{md5}
	KeyFileMD5ToUUID = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToUUID + ":%s"

	// KeyAnswerCache 问答答案缓存 (STRING)
	// 格式: app:qa:answer:{questionHash}
	KeyAnswerCache = AppPrefix + ":" + QAModulePrefix + ":" + EntityAnswer + ":%s"

	// KeyIngestLock 摄取分布式锁 (STRING)
	// 格式: app:ingest:lock:{submissionUUID}
	KeyIngestLock = AppPrefix + ":" + IngestModulePrefix + ":" + EntityLock + ":%s"
)
