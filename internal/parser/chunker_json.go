package parser

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/types"
)

// StructuredChunkBuilder 把人工维护的结构化简历JSON转换成块序列
// 与 RecordChunkBuilder 同样遵循每章节实例一块的原则，但输入字段更丰富：
// 职业概述、项目、按分类组织的技能都有独立的块。所有块额外带 source 元
// 数据键标注来源字段。
type StructuredChunkBuilder struct{}

// NewStructuredChunkBuilder 创建结构化简历分块器
func NewStructuredChunkBuilder() *StructuredChunkBuilder {
	return &StructuredChunkBuilder{}
}

// BuildChunksFromJSON 解析原始JSON后构建块序列
func (b *StructuredChunkBuilder) BuildChunksFromJSON(data []byte) ([]types.Chunk, error) {
	var resume types.StructuredResume
	if err := json.Unmarshal(data, &resume); err != nil {
		return nil, fmt.Errorf("解析结构化简历JSON失败: %w", err)
	}
	return b.BuildChunks(&resume), nil
}

// BuildChunks 把结构化简历转换成块序列
func (b *StructuredChunkBuilder) BuildChunks(resume *types.StructuredResume) []types.Chunk {
	if resume == nil {
		return nil
	}
	name := chunkPersonName(resume.PersonalInfo.Name)

	var chunks []types.Chunk
	if chunk, ok := b.personalChunk(resume.PersonalInfo, name); ok {
		chunks = append(chunks, chunk)
	}
	if chunk, ok := b.summaryChunk(resume.ProfessionalSummary, name); ok {
		chunks = append(chunks, chunk)
	}
	for _, job := range resume.WorkExperience {
		chunks = append(chunks, b.experienceChunk(job, name))
	}
	for _, edu := range resume.Education {
		chunks = append(chunks, b.educationChunk(edu, name))
	}
	chunks = append(chunks, b.skillsChunks(resume.TechnicalSkills, name)...)
	for _, project := range resume.Projects {
		chunks = append(chunks, b.projectChunk(project, name))
	}
	if chunk, ok := b.certificationsChunk(resume.Certifications, name); ok {
		chunks = append(chunks, chunk)
	}
	if chunk, ok := b.interestsChunk(resume.Interests, name); ok {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func (b *StructuredChunkBuilder) personalChunk(personal types.StructuredPersonal, name string) (types.Chunk, bool) {
	if personal.Name == "" {
		return types.Chunk{}, false
	}

	info := []string{"Name: " + personal.Name}
	if personal.Title != "" {
		info = append(info, "Title: "+personal.Title)
	}
	if personal.Email != "" {
		info = append(info, "Email: "+personal.Email)
	}
	if personal.Location != "" {
		info = append(info, "Location: "+personal.Location)
	}
	if personal.Website != "" {
		info = append(info, "Website: "+personal.Website)
	}
	if personal.LinkedIn != "" {
		info = append(info, "LinkedIn: "+personal.LinkedIn)
	}
	if personal.GitHub != "" {
		info = append(info, "GitHub: "+personal.GitHub)
	}

	based := personal.Location
	if based == "" {
		based = "Australia"
	}
	text := "Personal Information:\n" + strings.Join(info, "\n") +
		fmt.Sprintf("\n\n%s is an experienced software engineer based in %s.", name, based)
	return types.Chunk{
		Text: text,
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionPersonal,
			constants.MetaKeyType:    "contact_info",
			constants.MetaKeyPerson:  name,
			constants.MetaKeySource:  "personal_info",
		},
	}, true
}

func (b *StructuredChunkBuilder) summaryChunk(summary *types.StructuredSummary, name string) (types.Chunk, bool) {
	if summary == nil {
		return types.Chunk{}, false
	}
	text := fmt.Sprintf("Professional Summary:\nTitle: %s\n\n%s", summary.Title, summary.Description)
	return types.Chunk{
		Text: text,
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionSummary,
			constants.MetaKeyType:    "overview",
			constants.MetaKeyPerson:  name,
			constants.MetaKeySource:  "professional_summary",
		},
	}, true
}

func (b *StructuredChunkBuilder) experienceChunk(job types.StructuredJob, name string) types.Chunk {
	company := orDefault(job.Company, "Unknown Company")
	position := orDefault(job.Position, "Unknown Position")
	duration := orDefault(job.Duration, "Unknown Duration")

	var sb strings.Builder
	// 冗余表述（Company/Employer、Position/Job Title成对出现）是给词法
	// 检索加权用的，删了会掉召回
	fmt.Fprintf(&sb, "Work Experience and Employment History:\nCompany: %s\nEmployer: %s\nPosition: %s\nJob Title: %s\nDuration: %s\nEmployee: %s",
		company, company, position, position, duration, name)
	if job.Location != "" {
		sb.WriteString("\nLocation: " + job.Location)
	}
	if job.CompanyDescription != "" {
		sb.WriteString("\n\nCompany Description: " + job.CompanyDescription)
	}

	isCurrent := strings.Contains(strings.ToLower(duration), "present")
	if isCurrent {
		fmt.Fprintf(&sb, "\n\nCURRENT EMPLOYMENT STATUS: %s is currently working at %s as a %s. This is their current job and present employer.",
			name, company, position)
	}

	if len(job.Achievements) > 0 {
		sb.WriteString("\n\nKey Achievements and Responsibilities:")
		for _, achievement := range job.Achievements {
			sb.WriteString("\n• " + achievement)
		}
	}
	if len(job.Technologies) > 0 {
		sb.WriteString("\n\nTechnologies Used: " + strings.Join(job.Technologies, ", "))
	}

	if isCurrent {
		since := strings.TrimSpace(strings.SplitN(duration, " - ", 2)[0])
		fmt.Fprintf(&sb, "\n\n%s is currently employed at %s company as a %s since %s. This is their current position and present job.",
			name, company, position, since)
	} else {
		fmt.Fprintf(&sb, "\n\n%s worked at %s company as a %s %s. This employment experience shows %s has professional work experience at %s.",
			name, company, position, duration, name, company)
	}

	return types.Chunk{
		Text: sb.String(),
		Metadata: map[string]string{
			constants.MetaKeySection:     constants.SectionExperience,
			constants.MetaKeyType:        "company",
			constants.MetaKeyCompanyName: company,
			constants.MetaKeyPosition:    position,
			constants.MetaKeyDuration:    duration,
			constants.MetaKeyPerson:      name,
			constants.MetaKeySource:      "work_experience",
		},
	}
}

func (b *StructuredChunkBuilder) educationChunk(edu types.StructuredEducation, name string) types.Chunk {
	institution := orDefault(edu.Institution, "Unknown Institution")
	degree := orDefault(edu.Degree, "Unknown Degree")
	duration := orDefault(edu.Duration, "Unknown Duration")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Education Background:\nInstitution: %s\nDegree: %s", institution, degree)
	if edu.Major != "" {
		sb.WriteString("\nMajor: " + edu.Major)
	}
	sb.WriteString("\nDuration: " + duration)
	if edu.Location != "" {
		sb.WriteString("\nLocation: " + edu.Location)
	}
	if edu.Details != "" {
		sb.WriteString("\n\nDetails: " + edu.Details)
	}
	fmt.Fprintf(&sb, "\n\n%s studied at %s and earned a %s.", name, institution, degree)

	return types.Chunk{
		Text: sb.String(),
		Metadata: map[string]string{
			constants.MetaKeySection:     constants.SectionEducation,
			constants.MetaKeyType:        "academic",
			constants.MetaKeyInstitution: institution,
			constants.MetaKeyDegree:      degree,
			constants.MetaKeyDuration:    duration,
			constants.MetaKeyPerson:      name,
			constants.MetaKeySource:      "education",
		},
	}
}

func (b *StructuredChunkBuilder) skillsChunks(skills types.SkillCategoryMap, name string) []types.Chunk {
	var chunks []types.Chunk
	// 按分类名排序遍历，块序列和下游point ID才是确定的
	for _, categoryName := range slices.Sorted(maps.Keys(skills)) {
		groups := skills[categoryName]
		for _, group := range groups {
			groupName := orDefault(group.Category, categoryName)
			if len(group.Skills) == 0 {
				continue
			}
			text := fmt.Sprintf("Technical Skills - %s:\n%s is proficient in: %s",
				groupName, name, strings.Join(group.Skills, ", "))
			chunks = append(chunks, types.Chunk{
				Text: text,
				Metadata: map[string]string{
					constants.MetaKeySection:  constants.SectionSkills,
					constants.MetaKeyType:     "technical_skills",
					constants.MetaKeyCategory: groupName,
					constants.MetaKeyPerson:   name,
					constants.MetaKeySource:   "technical_skills",
				},
			})
		}
	}
	return chunks
}

func (b *StructuredChunkBuilder) projectChunk(project types.StructuredProject, name string) types.Chunk {
	projectName := orDefault(project.Name, "Unknown Project")
	projectType := orDefault(project.Type, "Project")
	duration := orDefault(project.Duration, "Unknown Duration")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\nType: %s\nDuration: %s\n\nDescription: %s",
		projectName, projectType, duration, project.Description)
	if len(project.KeyFeatures) > 0 {
		sb.WriteString("\n\nKey Features:")
		for _, feature := range project.KeyFeatures {
			sb.WriteString("\n• " + feature)
		}
	}
	if len(project.Technologies) > 0 {
		sb.WriteString("\n\nTechnologies: " + strings.Join(project.Technologies, ", "))
	}
	if project.Achievement != "" {
		sb.WriteString("\n\nAchievement: " + project.Achievement)
	}
	if project.Impact != "" {
		sb.WriteString("\n\nImpact: " + project.Impact)
	}

	return types.Chunk{
		Text: sb.String(),
		Metadata: map[string]string{
			constants.MetaKeySection:     constants.SectionProjects,
			constants.MetaKeyType:        "project",
			constants.MetaKeyProjectName: projectName,
			constants.MetaKeyProjectType: projectType,
			constants.MetaKeyPerson:      name,
			constants.MetaKeySource:      "projects",
		},
	}
}

func (b *StructuredChunkBuilder) certificationsChunk(certifications []types.StructuredCert, name string) (types.Chunk, bool) {
	if len(certifications) == 0 {
		return types.Chunk{}, false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Certifications:\n%s holds the following certifications:\n", name)
	for _, cert := range certifications {
		certName := orDefault(cert.Name, "Unknown Certification")
		issuer := orDefault(cert.Issuer, "Unknown Issuer")
		fmt.Fprintf(&sb, "\n• %s - %s", certName, issuer)
		if cert.Validity != "" {
			fmt.Fprintf(&sb, " (Valid: %s)", cert.Validity)
		}
		if cert.Status != "" {
			sb.WriteString(" - Status: " + cert.Status)
		}
		if cert.Description != "" {
			sb.WriteString("\n  " + cert.Description)
		}
		if cert.CredlyURL != "" {
			sb.WriteString("\n Credly Badge URL: " + cert.CredlyURL)
		}
	}

	return types.Chunk{
		Text: sb.String(),
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionCertifications,
			constants.MetaKeyType:    "credentials",
			constants.MetaKeyPerson:  name,
			constants.MetaKeySource:  "certifications",
		},
	}, true
}

func (b *StructuredChunkBuilder) interestsChunk(interests []string, name string) (types.Chunk, bool) {
	if len(interests) == 0 {
		return types.Chunk{}, false
	}
	text := fmt.Sprintf("Personal Interests:\n%s is interested in: %s", name, strings.Join(interests, ", "))
	return types.Chunk{
		Text: text,
		Metadata: map[string]string{
			constants.MetaKeySection: constants.SectionInterests,
			constants.MetaKeyType:    "hobbies",
			constants.MetaKeyPerson:  name,
			constants.MetaKeySource:  "interests",
		},
	}, true
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
