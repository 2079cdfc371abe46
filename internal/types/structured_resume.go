package types

// StructuredResume 手工维护的结构化简历输入（JSON格式）
// 与解析器输出的 ParsedRecord 不同，它由人工编写，字段更丰富也更可信
// 任何字段都可能缺失，消费方必须把每个键当作可选处理
type StructuredResume struct {
	PersonalInfo        StructuredPersonal    `json:"personal_info"`
	ProfessionalSummary *StructuredSummary    `json:"professional_summary,omitempty"`
	WorkExperience      []StructuredJob       `json:"work_experience,omitempty"`
	Education           []StructuredEducation `json:"education,omitempty"`
	TechnicalSkills     SkillCategoryMap      `json:"technical_skills,omitempty"`
	Projects            []StructuredProject   `json:"projects,omitempty"`
	Certifications      []StructuredCert      `json:"certifications,omitempty"`
	Interests           []string              `json:"interests,omitempty"`
}

// StructuredPersonal 结构化简历的个人信息
type StructuredPersonal struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
	Website  string `json:"website,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
}

// StructuredSummary 职业概述
type StructuredSummary struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// StructuredJob 一段工作经历（含成就和技术栈）
type StructuredJob struct {
	Company            string   `json:"company"`
	Position           string   `json:"position"`
	Duration           string   `json:"duration"`
	Location           string   `json:"location,omitempty"`
	CompanyDescription string   `json:"company_description,omitempty"`
	Achievements       []string `json:"achievements,omitempty"`
	Technologies       []string `json:"technologies,omitempty"`
}

// StructuredEducation 一条教育经历
type StructuredEducation struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Major       string `json:"major,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Location    string `json:"location,omitempty"`
	Details     string `json:"details,omitempty"`
}

// SkillCategoryMap 技能分类映射，键为大类名，值为若干技能分组
type SkillCategoryMap map[string][]SkillGroup

// SkillGroup 一个技能分组
type SkillGroup struct {
	Category string   `json:"category,omitempty"`
	Skills   []string `json:"skills,omitempty"`
}

// StructuredProject 一个项目经历
type StructuredProject struct {
	Name         string   `json:"name"`
	Type         string   `json:"type,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	Description  string   `json:"description,omitempty"`
	KeyFeatures  []string `json:"key_features,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	Achievement  string   `json:"achievement,omitempty"`
	Impact       string   `json:"impact,omitempty"`
}

// StructuredCert 一条认证信息
type StructuredCert struct {
	Name        string `json:"name"`
	Issuer      string `json:"issuer,omitempty"`
	Validity    string `json:"validity,omitempty"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
	CredlyURL   string `json:"credlyUrl,omitempty"`
}
