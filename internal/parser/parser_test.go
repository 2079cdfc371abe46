package parser_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/parser"
)

// 一份结构完整的英文简历样本，覆盖各提取器的主路径
const sampleResumeText = `John Smith
Brisbane, Queensland
Mobile: +61412345678
Email: john.smith@gmail.com

EXPERIENCE

Developer
Acme Systems
02/2015 - 03/2018

Engineer
Acme Systems Pty Ltd
01/2020 - Present

SKILLS
Python, JavaScript, React, AWS, Docker

EDUCATION
Bachelor of Computer Science
Queensland University of Technology
Brisbane, QLD

CERTIFICATIONS
AWS Certified Solutions Architect
(Valid until 2026)

INTERESTS
Photography
Rock climbing`

// TestParse_FullResume 完整简历走一遍全部提取器
func TestParse_FullResume(t *testing.T) {
	p := parser.NewUniversalParser()
	record := p.Parse(context.Background(), sampleResumeText)
	require.NotNil(t, record)

	assert.Equal(t, "John Smith", record.Personal.Name)
	assert.Equal(t, "john.smith@gmail.com", record.Personal.Email)
	assert.Equal(t, "+61412345678", record.Personal.Phone)
	assert.Equal(t, "Brisbane, Queensland", record.Personal.Location)

	// 两段经历的公司名互为子串，去重后保留更长的那条
	require.Len(t, record.Companies, 1, "同一家公司的两条记录应去重成一条")
	company := record.Companies[0]
	assert.Equal(t, "Acme Systems Pty Ltd", company.Name)
	assert.Equal(t, "Engineer", company.Position)
	assert.Equal(t, "01/2020 - Present", company.Dates)
	assert.Equal(t, 15, company.Confidence, "日期紧邻公司行时置信度应为15")

	// 技能按词表声明顺序返回，与文中出现顺序无关
	assert.Equal(t, []string{"Python", "JavaScript", "React", "AWS", "Docker"}, record.Skills)

	require.Len(t, record.Education, 1)
	edu := record.Education[0]
	assert.Equal(t, "Bachelor Of Computer Science", edu.Degree)
	assert.Equal(t, "Queensland University of Technology", edu.Institution)
	assert.Equal(t, "Brisbane, QLD", edu.Location)

	assert.Equal(t, []string{"AWS Certified Solutions Architect (Valid until 2026)"}, record.Certifications)
	assert.Equal(t, []string{"Photography", "Rock Climbing"}, record.Interests)
	assert.Empty(t, record.References)

	assert.Equal(t, len(sampleResumeText), record.Stats.TextLength)
	assert.Equal(t, 1, record.Stats.CompaniesFound)
	assert.Equal(t, 5, record.Stats.SkillsFound)
	assert.Equal(t, 0, record.Stats.ReferencesFound)
}

// TestParse_EmptyText 空文本退化为全空记录，不报错
func TestParse_EmptyText(t *testing.T) {
	p := parser.NewUniversalParser()
	record := p.Parse(context.Background(), "")
	require.NotNil(t, record)
	assert.True(t, record.IsEmpty(), "空文本应产出空记录")
	assert.Equal(t, 0, record.Stats.TextLength)
}

// TestParse_JunkText 毫无简历结构的文本同样产出空记录
func TestParse_JunkText(t *testing.T) {
	p := parser.NewUniversalParser()
	record := p.Parse(context.Background(), "xxxx yyyy zzzz wwww vvvv\nblah blah blah")
	require.NotNil(t, record)
	assert.True(t, record.IsEmpty(), "无结构文本应产出空记录而非报错")
}

// TestParse_Deterministic 同一输入重复解析结果必须完全一致
func TestParse_Deterministic(t *testing.T) {
	p := parser.NewUniversalParser()
	first := p.Parse(context.Background(), sampleResumeText)
	second := p.Parse(context.Background(), sampleResumeText)
	assert.Equal(t, first, second)
}

// fakeRecognizer 固定返回预设实体的NER桩
type fakeRecognizer struct {
	entities []parser.Entity
	err      error
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ string) ([]parser.Entity, error) {
	return f.entities, f.err
}

// TestExtractName_NERFallback 首行策略失败时走NER兜底
func TestExtractName_NERFallback(t *testing.T) {
	// 前几行全是职位和联系方式，首行策略提取不出姓名
	text := "Senior Software Engineer Resume\ncontact@example.com\n5 years experience"

	recognizer := &fakeRecognizer{entities: []parser.Entity{
		{Text: "Sydney", Label: "GPE"},
		{Text: "Jane Ann Doe", Label: parser.EntityLabelPerson},
	}}
	name := parser.ExtractName(context.Background(), text, recognizer)
	assert.Equal(t, "Jane Ann Doe", name, "应取第一个至少两个词的PERSON实体")

	// 单词PERSON实体不够像完整姓名，应跳过
	recognizer = &fakeRecognizer{entities: []parser.Entity{
		{Text: "Jane", Label: parser.EntityLabelPerson},
	}}
	assert.Empty(t, parser.ExtractName(context.Background(), text, recognizer))
}

// TestExtractName_RecognizerFailure NER失败等同于没有实体，不中断解析
func TestExtractName_RecognizerFailure(t *testing.T) {
	text := "Senior Software Engineer Resume\ncontact@example.com"
	recognizer := &fakeRecognizer{err: assert.AnError}
	assert.Empty(t, parser.ExtractName(context.Background(), text, recognizer))
	assert.Empty(t, parser.ExtractName(context.Background(), text, nil), "nil识别器应跳过兜底")
}

// TestExtractEmail_PrefersPersonalOverAdmin 姓名token和个人域名得分应压过行政邮箱
func TestExtractEmail_PrefersPersonalOverAdmin(t *testing.T) {
	text := "Contact our HR team at hr@bigcorp.com for openings.\nJane Doe\njane.doe@gmail.com"
	email := parser.ExtractEmail(text, "Jane Doe")
	assert.Equal(t, "jane.doe@gmail.com", email)
}

// TestExtractEmail_BestEffortOnNegativeScore 只有行政邮箱时也返回最高分者
// 这是有意保留的尽力而为行为：有语法匹配就不放弃
func TestExtractEmail_BestEffortOnNegativeScore(t *testing.T) {
	email := parser.ExtractEmail("Reach us at info@example.com", "")
	assert.Equal(t, "info@example.com", email)
}

// TestExtractEmail_NoMatch 没有邮箱形状的文本返回空
func TestExtractEmail_NoMatch(t *testing.T) {
	assert.Empty(t, parser.ExtractEmail("no contact details here", "John Smith"))
}

// TestExtractPhone_PrefersLabeledOverReference 个人标签加分、推荐人上下文扣分
func TestExtractPhone_PrefersLabeledOverReference(t *testing.T) {
	text := "Phone: +61412345678\n\nREFERENCES\nSupervisor: Mary Jones\n+61733334444"
	phone := parser.ExtractPhone(text)
	assert.Equal(t, "+61412345678", phone)
}

// TestExtractPhone_DiscardsShortNumbers 归一化后不足10位的匹配直接丢弃
func TestExtractPhone_DiscardsShortNumbers(t *testing.T) {
	assert.Empty(t, parser.ExtractPhone("Fax: 02-345-6789"))
}

// TestExtractLocation_RejectsCloudServiceShapes 云服务术语碰巧匹配地名形状时宁可为空
func TestExtractLocation_RejectsCloudServiceShapes(t *testing.T) {
	text := "Deployed Lambda, Functions and Gateway, Services on AWS"
	assert.Empty(t, parser.ExtractLocation(text), "假地名得分为负时不应返回")
}

// TestExtractLocation_KnownCity 已知城市加个人信息上下文
func TestExtractLocation_KnownCity(t *testing.T) {
	text := "Email: someone@gmail.com\nBrisbane, Queensland\nPhone: +61412345678"
	assert.Equal(t, "Brisbane, Queensland", parser.ExtractLocation(text))
}

// TestExtractCompanies_NoDateLowersConfidence 日期不在公司行附近时置信度降为10
func TestExtractCompanies_NoDateLowersConfidence(t *testing.T) {
	text := "Developer\nGlobex Corporation\nBuilt internal tooling"
	companies := parser.ExtractCompanies(text)
	require.Len(t, companies, 1)
	assert.Equal(t, "Globex Corporation", companies[0].Name)
	assert.Equal(t, "Date not specified", companies[0].Dates)
	assert.Equal(t, 10, companies[0].Confidence)
}

// TestExtractCompanies_DedupePrefersDatedRecord 同名公司有日期的记录替换无日期的
func TestExtractCompanies_DedupePrefersDatedRecord(t *testing.T) {
	text := "Developer\nInitech Solutions\nsome filler\nmore filler\n" +
		"Engineer\nInitech Solutions\n05/2019 - 06/2021"
	companies := parser.ExtractCompanies(text)
	require.Len(t, companies, 1)
	assert.Equal(t, "05/2019 - 06/2021", companies[0].Dates)
	assert.Equal(t, 15, companies[0].Confidence)
}

// TestExtractSkills_WholeDocumentFallback 没有技能章节时搜整个文档
func TestExtractSkills_WholeDocumentFallback(t *testing.T) {
	text := "Built services in Go with PostgreSQL and Redis on Kubernetes"
	skills := parser.ExtractSkills(text)
	assert.Equal(t, []string{"Go", "Kubernetes", "PostgreSQL", "Redis"}, skills)
}

// TestExtractSkills_WordBoundaries 词表匹配必须是整词，避免Java吞掉JavaScript
func TestExtractSkills_WordBoundaries(t *testing.T) {
	skills := parser.ExtractSkills("JavaScript expert")
	assert.Contains(t, skills, "JavaScript")
	assert.NotContains(t, skills, "Java", "JavaScript不应同时命中Java")
}

// TestExtractSkills_UppercaseLeakFiltered 长全大写词表项视为章节标题泄漏
func TestExtractSkills_UppercaseLeakFiltered(t *testing.T) {
	skills := parser.ExtractSkills("Modeling in MATLAB, infrastructure on AWS")
	assert.NotContains(t, skills, "MATLAB", "超过4个字符的全大写token应被过滤")
	assert.Contains(t, skills, "AWS", "合法短缩写应保留")
}

// TestExtractEducation_DegreeInstitutionDates 学位、院校、日期三行填进同一个条目
func TestExtractEducation_DegreeInstitutionDates(t *testing.T) {
	text := "EDUCATION\nBachelor of Computer Science\nUniversity of Queensland\n02/2016 - 11/2019"
	entries := parser.ExtractEducation(text)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bachelor Of Computer Science", entries[0].Degree)
	assert.Equal(t, "University of Queensland", entries[0].Institution)
	assert.Equal(t, "02/2016 - 11/2019", entries[0].Dates)
}

// TestExtractEducation_InstitutionKeywordTable 院校行识别覆盖整张学历关键词表
func TestExtractEducation_InstitutionKeywordTable(t *testing.T) {
	text := "EDUCATION\nDiploma of Web Development\nBrisbane Coding Academy"
	entries := parser.ExtractEducation(text)
	require.Len(t, entries, 1)
	assert.Equal(t, "Brisbane Coding Academy", entries[0].Institution)
}

// TestExtractEducation_FallbackDegreeScan 教育章节缺失时全文档学位兜底
func TestExtractEducation_FallbackDegreeScan(t *testing.T) {
	text := "Completed a Master of Information Technology, then joined the team."
	entries := parser.ExtractEducation(text)
	require.NotEmpty(t, entries)
	assert.Equal(t, "Information Technology", entries[0].Degree)
	assert.Empty(t, entries[0].Institution, "兜底条目只有学位字段")
}

// TestExtractCertifications_LigatureNormalization PDF连字伪影归一化后才匹配得上
func TestExtractCertifications_LigatureNormalization(t *testing.T) {
	text := "CERTIFICATIONS\nAWS Certiﬁed Developer Associate\nSKILLS"
	certs := parser.ExtractCertifications(text)
	assert.Equal(t, []string{"AWS Certified Developer Associate"}, certs)
}

// TestExtractCertifications_ParenLineAppends 括号短行是日期子句，追加到当前认证
func TestExtractCertifications_ParenLineAppends(t *testing.T) {
	text := "CERTIFICATIONS\nAzure Certified Administrator\n(expires 2027)\nINTERESTS"
	certs := parser.ExtractCertifications(text)
	assert.Equal(t, []string{"Azure Certified Administrator (expires 2027)"}, certs)
}

// TestExtractCertifications_RequiresKeyword 不含certified的条目在清洗时剔除
func TestExtractCertifications_RequiresKeyword(t *testing.T) {
	text := "CERTIFICATIONS\nFirst Aid Training Course Completion Record\nINTERESTS"
	assert.Empty(t, parser.ExtractCertifications(text))
}

// TestExtractReferences_RequiresContactInfo 只有姓名没有联系方式的推荐人被丢弃
func TestExtractReferences_RequiresContactInfo(t *testing.T) {
	withContact := "REFERENCES\nManager: Sarah Lee\nsarah.lee@bigcorp.com"
	refs := parser.ExtractReferences(withContact)
	require.Len(t, refs, 1)
	assert.Equal(t, "Sarah Lee", refs[0].Name)
	assert.Equal(t, "sarah.lee@bigcorp.com", refs[0].Email)

	withoutContact := "REFERENCES\nManager: Tom Ford\navailable upon request"
	assert.Empty(t, parser.ExtractReferences(withoutContact))
}

// TestExtractReferences_DedupeByName 同名推荐人多次出现只保留一条
func TestExtractReferences_DedupeByName(t *testing.T) {
	text := "Supervisor: Alan Brown\nalan.brown@corp.com\n" +
		"Manager: Alan Brown\nalan.brown@corp.com"
	refs := parser.ExtractReferences(text)
	assert.Len(t, refs, 1)
}

// TestNormalizeExtractedText 连字和长短横线替换
func TestNormalizeExtractedText(t *testing.T) {
	in := "Certiﬁed staﬀ – 2020—2021"
	out := parser.NormalizeExtractedText(in)
	assert.Equal(t, "Certified staff - 2020-2021", out)
	assert.False(t, strings.ContainsRune(out, 'ﬁ'))
}
