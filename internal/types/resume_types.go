package types

// PersonalInfo 个人基本信息，每个字段都是启发式提取的最佳候选，找不到时为空字符串
type PersonalInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// CompanyRecord 一段工作经历
// Confidence 用于标记日期是否紧邻公司行出现（15=有日期，10=无日期）
type CompanyRecord struct {
	Name       string `json:"name"`
	Position   string `json:"position"`
	Dates      string `json:"dates"`
	Confidence int    `json:"confidence"`
}

// EducationEntry 一条教育经历，字段在扫描教育章节时逐行填充，允许部分为空
type EducationEntry struct {
	Degree      string `json:"degree,omitempty"`
	Institution string `json:"institution,omitempty"`
	Dates       string `json:"dates,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Reference 一条推荐人信息，Name必填，Email/Phone至少有一个
type Reference struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ParsingStats 单次解析的统计信息
type ParsingStats struct {
	TextLength      int `json:"text_length"`
	CompaniesFound  int `json:"companies_found"`
	SkillsFound     int `json:"skills_found"`
	ReferencesFound int `json:"references_found"`
}

// ParsedRecord 一份简历解析后的完整结构化结果，交给分块器消费
type ParsedRecord struct {
	Personal       PersonalInfo     `json:"personal"`
	Companies      []CompanyRecord  `json:"companies"`
	Skills         []string         `json:"skills"`
	Education      []EducationEntry `json:"education"`
	Certifications []string         `json:"certifications"`
	Interests      []string         `json:"interests"`
	References     []Reference      `json:"references"`
	Stats          ParsingStats     `json:"parsing_stats"`
}

// IsEmpty 判断解析结果是否完全为空（解析不出任何结构是合法结果，不是错误）
func (r *ParsedRecord) IsEmpty() bool {
	return r.Personal == (PersonalInfo{}) &&
		len(r.Companies) == 0 &&
		len(r.Skills) == 0 &&
		len(r.Education) == 0 &&
		len(r.Certifications) == 0 &&
		len(r.Interests) == 0 &&
		len(r.References) == 0
}

// Chunk 自包含的文本段落加溯源元数据，是交给检索子系统的最小单元
// Metadata 固定包含 section/type/person 三个键，按块类型附加额外键
// 这些键是下游过滤的事实契约，必须原样保留
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// RetrievedChunk 向量检索返回的一个块及其相似度分数
type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}
