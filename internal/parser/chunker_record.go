package parser

import (
	"fmt"
	"strings"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/types"
)

// 工作经历块里需要跳过的伪公司名（章节标题碎片）
var companyNameSkipTokens = []string{"experience", "work", "achievements"}

// 技能块里过滤的假阳性（解析器词表之外可能混进来的章节标题等）
var chunkSkillFalsePositives = map[string]bool{
	"EXPERIENCE": true, "EDUCATION": true, "PROJECTS": true, "PERSONAL": true,
	"CERTIFICATIONS": true, "SKILLS": true, "INTERESTS": true, "WORK": true,
	"ACT": true, "PWA": true, "NFTs": true, "SPAs": true,
}

// 技能块最多罗列的技能数，超出部分折叠成一句统计
const maxSkillsListed = 15

// RecordChunkBuilder 把解析出的结构化记录转换成自包含的自然语言块序列
// 每个逻辑章节实例一个块（每家公司一块、每条教育经历一块……）。块文本
// 刻意使用冗余表述（既写 "Company: X" 又写 "worked at X"）以同时喂饱
// 下游的词法检索和语义检索。无副作用，不做任何I/O。
type RecordChunkBuilder struct{}

// NewRecordChunkBuilder 创建解析记录分块器
func NewRecordChunkBuilder() *RecordChunkBuilder {
	return &RecordChunkBuilder{}
}

// BuildChunks 把 ParsedRecord 转换成块序列
// 记录为空时返回零个块——这是合法可上报的结果，不是错误
func (b *RecordChunkBuilder) BuildChunks(record *types.ParsedRecord) []types.Chunk {
	if record == nil {
		return nil
	}

	var chunks []types.Chunk
	name := record.Personal.Name

	if chunk, ok := b.personalChunk(record.Personal); ok {
		chunks = append(chunks, chunk)
	}
	chunks = append(chunks, b.companyChunks(record.Companies, name)...)
	if chunk, ok := b.skillsChunk(record.Skills, name); ok {
		chunks = append(chunks, chunk)
	}
	chunks = append(chunks, b.educationChunks(record.Education, name)...)
	if chunk, ok := b.certificationsChunk(record.Certifications, name); ok {
		chunks = append(chunks, chunk)
	}
	if chunk, ok := b.referencesChunk(record.References, name); ok {
		chunks = append(chunks, chunk)
	}
	if chunk, ok := b.interestsChunk(record.Interests, name); ok {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func (b *RecordChunkBuilder) personalChunk(personal types.PersonalInfo) (types.Chunk, bool) {
	if personal.Name == "" {
		return types.Chunk{}, false
	}

	var info []string
	info = append(info, "Name: "+personal.Name)
	if personal.Email != "" {
		info = append(info, "Email: "+personal.Email)
	}
	if personal.Phone != "" {
		info = append(info, "Phone: "+personal.Phone)
	}
	if personal.Location != "" {
		info = append(info, "Location: "+personal.Location)
	}

	text := "Personal Information:\n" + strings.Join(info, "\n") +
		fmt.Sprintf("\n\n%s is available for contact via the above information.", personal.Name)
	return types.Chunk{
		Text: text,
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionPersonal,
			constants.MetaKeyType:    "contact_info",
			constants.MetaKeyPerson:  personal.Name,
		},
	}, true
}

func (b *RecordChunkBuilder) companyChunks(companies []types.CompanyRecord, name string) []types.Chunk {
	var chunks []types.Chunk
	for _, company := range companies {
		companyName := strings.TrimSpace(company.Name)
		// 解析噪声可能让公司名带上前导行，只保留最后一行
		if idx := strings.LastIndex(companyName, "\n"); idx >= 0 {
			companyName = strings.TrimSpace(companyName[idx+1:])
		}
		if companyName == "" || containsAny(strings.ToLower(companyName), companyNameSkipTokens) {
			continue
		}

		position := company.Position
		if position == "" {
			position = constants.DefaultPosition
		}
		dates := company.Dates
		if dates == "" {
			dates = constants.DateNotSpecified
		}

		displayName := chunkPersonName(name)
		text := fmt.Sprintf("Work Experience:\nCompany: %s\nPosition: %s\nDates: %s\nEmployee: %s\n\n%s worked at %s as a %s",
			companyName, position, dates, displayName, displayName, companyName, position)
		if dates != constants.DateNotSpecified {
			text += " from " + dates
		}
		text += ", contributing to development projects, technical solutions, and software engineering tasks."

		chunks = append(chunks, types.Chunk{
			Text: text,
			Metadata: map[string]string{
				constants.MetaKeySection:     constants.SectionExperience,
				constants.MetaKeyType:        "company",
				constants.MetaKeyCompanyName: companyName,
				constants.MetaKeyPosition:    position,
				constants.MetaKeyDates:       dates,
				constants.MetaKeyPerson:      displayName,
			},
		})
	}
	return chunks
}

func (b *RecordChunkBuilder) skillsChunk(skills []string, name string) (types.Chunk, bool) {
	var filtered []string
	for _, skill := range skills {
		if len(skill) <= 1 || chunkSkillFalsePositives[skill] {
			continue
		}
		if isUpperString(skill) && len(skill) > 4 {
			continue // 长全大写token是章节标题泄漏，短缩写保留
		}
		filtered = append(filtered, skill)
	}
	if len(filtered) == 0 {
		return types.Chunk{}, false
	}

	displayName := chunkPersonName(name)
	listed := filtered
	if len(listed) > maxSkillsListed {
		listed = listed[:maxSkillsListed]
	}
	text := fmt.Sprintf("Technical Skills and Expertise:\n%s is proficient in: %s", displayName, strings.Join(listed, ", "))
	if len(filtered) > maxSkillsListed {
		text += fmt.Sprintf(" and %d other technologies.", len(filtered)-maxSkillsListed)
	}

	return types.Chunk{
		Text: text,
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionSkills,
			constants.MetaKeyType:    "technical_skills",
			constants.MetaKeyPerson:  displayName,
		},
	}, true
}

func (b *RecordChunkBuilder) educationChunks(education []types.EducationEntry, name string) []types.Chunk {
	var chunks []types.Chunk
	for _, edu := range education {
		var parts []string
		if edu.Degree != "" {
			parts = append(parts, "Degree: "+edu.Degree)
		}
		institution := cleanInstitution(edu.Institution)
		if institution != "" {
			parts = append(parts, "Institution: "+institution)
		}
		if edu.Dates != "" {
			parts = append(parts, "Dates: "+edu.Dates)
		}
		if edu.Location != "" {
			parts = append(parts, "Location: "+edu.Location)
		}
		if len(parts) == 0 {
			continue
		}

		displayName := chunkPersonName(name)
		studiedAt := institution
		if studiedAt == "" {
			studiedAt = "this institution"
		}
		degree := edu.Degree
		if degree == "" {
			degree = "degree"
		}
		text := "Education Background:\n" + strings.Join(parts, "\n") +
			fmt.Sprintf("\n\n%s studied at %s", displayName, studiedAt)
		if edu.Dates != "" {
			text += " from " + edu.Dates
		}
		text += fmt.Sprintf(" and earned a %s.", degree)

		chunks = append(chunks, types.Chunk{
			Text: text,
			Metadata: map[string]string{
				constants.MetaKeySection:     constants.SectionEducation,
				constants.MetaKeyType:        "academic",
				constants.MetaKeyInstitution: institution,
				constants.MetaKeyDegree:      edu.Degree,
				constants.MetaKeyDates:       edu.Dates,
				constants.MetaKeyPerson:      displayName,
			},
		})
	}
	return chunks
}

func (b *RecordChunkBuilder) certificationsChunk(certifications []string, name string) (types.Chunk, bool) {
	var valid []string
	for _, cert := range certifications {
		lowered := strings.ToLower(cert)
		if len(cert) > 10 && !isUpperString(cert) &&
			(strings.Contains(lowered, "certified") || strings.Contains(lowered, "certificate")) {
			valid = append(valid, cert)
		}
	}
	if len(valid) == 0 {
		return types.Chunk{}, false
	}

	displayName := chunkPersonName(name)
	var b2 strings.Builder
	fmt.Fprintf(&b2, "Certifications:\n%s holds the following certifications:", displayName)
	for _, cert := range valid {
		b2.WriteString("\n• " + cert)
	}

	return types.Chunk{
		Text: b2.String(),
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionCertifications,
			constants.MetaKeyType:    "credentials",
			constants.MetaKeyPerson:  displayName,
		},
	}, true
}

func (b *RecordChunkBuilder) referencesChunk(references []types.Reference, name string) (types.Chunk, bool) {
	var parts []string
	for _, ref := range references {
		if ref.Name == "" {
			continue
		}
		info := "• " + ref.Name
		if ref.Phone != "" {
			info += " - Phone: " + ref.Phone
		}
		if ref.Email != "" {
			info += " - Email: " + ref.Email
		}
		parts = append(parts, info)
	}
	if len(parts) == 0 {
		return types.Chunk{}, false
	}

	displayName := chunkPersonName(name)
	text := fmt.Sprintf("Professional References:\n%s has provided the following professional references:\n%s",
		displayName, strings.Join(parts, "\n"))
	return types.Chunk{
		Text: text,
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionReferences,
			constants.MetaKeyType:    "contacts",
			constants.MetaKeyPerson:  displayName,
		},
	}, true
}

func (b *RecordChunkBuilder) interestsChunk(interests []string, name string) (types.Chunk, bool) {
	if len(interests) == 0 {
		return types.Chunk{}, false
	}
	displayName := chunkPersonName(name)
	text := fmt.Sprintf("Personal Interests:\n%s enjoys: %s", displayName, strings.Join(interests, ", "))
	return types.Chunk{
		Text: text,
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionInterests,
			constants.MetaKeyType:    "hobbies",
			constants.MetaKeyPerson:  displayName,
		},
	}, true
}

// cleanInstitution 院校名可能混入多行，优先取含university/college的那行
func cleanInstitution(institution string) string {
	if !strings.Contains(institution, "\n") {
		return strings.TrimSpace(institution)
	}
	lines := strings.Split(institution, "\n")
	for _, line := range lines {
		lowered := strings.ToLower(line)
		if strings.Contains(lowered, "university") || strings.Contains(lowered, "college") {
			return strings.TrimSpace(line)
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// chunkPersonName 块文本里的人名，姓名缺失时用占位符
func chunkPersonName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}
