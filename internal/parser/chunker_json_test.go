package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/types"
)

// TestStructuredChunkBuilder_InvalidJSON 非法JSON直接报错
func TestStructuredChunkBuilder_InvalidJSON(t *testing.T) {
	builder := parser.NewStructuredChunkBuilder()
	chunks, err := builder.BuildChunksFromJSON([]byte("not json at all"))
	require.Error(t, err)
	assert.Nil(t, chunks)
}

// TestStructuredChunkBuilder_EmptyResume 空对象产出零个块，不报错
func TestStructuredChunkBuilder_EmptyResume(t *testing.T) {
	builder := parser.NewStructuredChunkBuilder()
	chunks, err := builder.BuildChunksFromJSON([]byte("{}"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

// TestStructuredChunkBuilder_CurrentEmployment duration含present时生成在职状态文本
func TestStructuredChunkBuilder_CurrentEmployment(t *testing.T) {
	resume := &types.StructuredResume{
		PersonalInfo: types.StructuredPersonal{Name: "Jane Doe"},
		WorkExperience: []types.StructuredJob{
			{
				Company:      "Globex",
				Position:     "Senior Engineer",
				Duration:     "03/2021 - Present",
				Achievements: []string{"Led the platform migration"},
				Technologies: []string{"Go", "AWS"},
			},
		},
	}
	chunks := parser.NewStructuredChunkBuilder().BuildChunks(resume)
	require.Len(t, chunks, 2, "个人块加一个工作经历块")

	job := chunks[1]
	assert.Equal(t, constants.SectionExperience, job.Metadata[constants.MetaKeySection])
	assert.Equal(t, "Globex", job.Metadata[constants.MetaKeyCompanyName])
	assert.Equal(t, "03/2021 - Present", job.Metadata[constants.MetaKeyDuration])
	assert.Equal(t, "work_experience", job.Metadata[constants.MetaKeySource])

	assert.Contains(t, job.Text, "CURRENT EMPLOYMENT STATUS")
	assert.Contains(t, job.Text, "Jane Doe is currently working at Globex as a Senior Engineer")
	assert.Contains(t, job.Text, "since 03/2021")
	assert.Contains(t, job.Text, "• Led the platform migration")
	assert.Contains(t, job.Text, "Technologies Used: Go, AWS")
}

// TestStructuredChunkBuilder_PastEmployment 已结束的经历用过去式表述
func TestStructuredChunkBuilder_PastEmployment(t *testing.T) {
	resume := &types.StructuredResume{
		PersonalInfo: types.StructuredPersonal{Name: "Jane Doe"},
		WorkExperience: []types.StructuredJob{
			{Company: "Initech", Position: "Developer", Duration: "01/2018 - 12/2019"},
		},
	}
	chunks := parser.NewStructuredChunkBuilder().BuildChunks(resume)
	require.Len(t, chunks, 2)
	assert.NotContains(t, chunks[1].Text, "CURRENT EMPLOYMENT STATUS")
	assert.Contains(t, chunks[1].Text, "Jane Doe worked at Initech company as a Developer 01/2018 - 12/2019")
}

// TestStructuredChunkBuilder_MissingFieldsGetDefaults 任何字段都可能缺失，缺失处用占位值
func TestStructuredChunkBuilder_MissingFieldsGetDefaults(t *testing.T) {
	resume := &types.StructuredResume{
		PersonalInfo:   types.StructuredPersonal{Name: "Jane Doe"},
		WorkExperience: []types.StructuredJob{{}},
	}
	chunks := parser.NewStructuredChunkBuilder().BuildChunks(resume)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Unknown Company", chunks[1].Metadata[constants.MetaKeyCompanyName])
	assert.Equal(t, "Unknown Position", chunks[1].Metadata[constants.MetaKeyPosition])
	assert.Equal(t, "Unknown Duration", chunks[1].Metadata[constants.MetaKeyDuration])
}

// TestStructuredChunkBuilder_SkillGroups 技能分类映射每个分组一块
func TestStructuredChunkBuilder_SkillGroups(t *testing.T) {
	resume := &types.StructuredResume{
		PersonalInfo: types.StructuredPersonal{Name: "Jane Doe"},
		TechnicalSkills: types.SkillCategoryMap{
			"backend": {
				{Category: "Languages", Skills: []string{"Go", "Python"}},
				{Skills: []string{"PostgreSQL"}}, // 无分组名时回落到大类名
				{Category: "Empty"},              // 无技能的分组不产块
			},
		},
	}
	chunks := parser.NewStructuredChunkBuilder().BuildChunks(resume)
	require.Len(t, chunks, 3, "个人块加两个技能分组块")

	categories := map[string]string{}
	for _, chunk := range chunks[1:] {
		assert.Equal(t, constants.SectionSkills, chunk.Metadata[constants.MetaKeySection])
		assert.Equal(t, "technical_skills", chunk.Metadata[constants.MetaKeySource])
		categories[chunk.Metadata[constants.MetaKeyCategory]] = chunk.Text
	}
	assert.Contains(t, categories["Languages"], "Go, Python")
	assert.Contains(t, categories["backend"], "PostgreSQL")
}

// TestStructuredChunkBuilder_SkillCategoryOrderDeterministic 技能分类按名字排序遍历
// 块序号决定向量库point ID，顺序漂移会让重复入库把不同文本绑到同一个点上
func TestStructuredChunkBuilder_SkillCategoryOrderDeterministic(t *testing.T) {
	resume := &types.StructuredResume{
		PersonalInfo: types.StructuredPersonal{Name: "Jane Doe"},
		TechnicalSkills: types.SkillCategoryMap{
			"frontend": {{Skills: []string{"React"}}},
			"backend":  {{Skills: []string{"Go"}}},
			"cloud":    {{Skills: []string{"AWS"}}},
			"data":     {{Skills: []string{"PostgreSQL"}}},
			"mobile":   {{Skills: []string{"Kotlin"}}},
			"devops":   {{Skills: []string{"Terraform"}}},
			"security": {{Skills: []string{"Vault"}}},
			"testing":  {{Skills: []string{"Playwright"}}},
		},
	}
	builder := parser.NewStructuredChunkBuilder()

	categoryOrder := func(chunks []types.Chunk) []string {
		var order []string
		for _, chunk := range chunks {
			if chunk.Metadata[constants.MetaKeySection] == constants.SectionSkills {
				order = append(order, chunk.Metadata[constants.MetaKeyCategory])
			}
		}
		return order
	}

	first := builder.BuildChunks(resume)
	assert.Equal(t, []string{
		"backend", "cloud", "data", "devops",
		"frontend", "mobile", "security", "testing",
	}, categoryOrder(first))

	for i := 0; i < 20; i++ {
		again := builder.BuildChunks(resume)
		require.Equal(t, categoryOrder(first), categoryOrder(again), "每次构建的分类顺序必须一致")
	}
}

// TestStructuredChunkBuilder_FullResume 各章节块齐全，source键标注来源字段
func TestStructuredChunkBuilder_FullResume(t *testing.T) {
	resume := &types.StructuredResume{
		PersonalInfo: types.StructuredPersonal{
			Name:     "Jane Doe",
			Title:    "Software Engineer",
			Email:    "jane.doe@gmail.com",
			Location: "Brisbane, Australia",
			GitHub:   "github.com/janedoe",
		},
		ProfessionalSummary: &types.StructuredSummary{
			Title:       "Cloud Engineer",
			Description: "Builds serverless platforms.",
		},
		Education: []types.StructuredEducation{
			{Institution: "QUT", Degree: "BSc", Major: "Computer Science"},
		},
		Projects: []types.StructuredProject{
			{Name: "Resume Search", Type: "Personal", Description: "Semantic search over resumes"},
		},
		Certifications: []types.StructuredCert{
			{Name: "AWS Solutions Architect", Issuer: "Amazon", Validity: "2026"},
		},
		Interests: []string{"Photography"},
	}
	chunks := parser.NewStructuredChunkBuilder().BuildChunks(resume)
	require.Len(t, chunks, 6)

	sources := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		assert.Equal(t, "Jane Doe", chunk.Metadata[constants.MetaKeyPerson])
		sources = append(sources, chunk.Metadata[constants.MetaKeySource])
	}
	assert.Equal(t, []string{
		"personal_info", "professional_summary", "education",
		"projects", "certifications", "interests",
	}, sources)

	assert.Contains(t, chunks[0].Text, "based in Brisbane, Australia")
	assert.Contains(t, chunks[1].Text, "Builds serverless platforms.")
	assert.Equal(t, "QUT", chunks[2].Metadata[constants.MetaKeyInstitution])
	assert.Equal(t, "Resume Search", chunks[3].Metadata[constants.MetaKeyProjectName])
	assert.Contains(t, chunks[4].Text, "AWS Solutions Architect - Amazon (Valid: 2026)")
	assert.Contains(t, chunks[5].Text, "Jane Doe is interested in: Photography")
}
