package parser

import (
	"context"

	"github.com/rs/zerolog"

	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/types"
)

// UniversalParser 通用简历解析器：把无任何模式标注的线性文本解析成
// 结构化记录。各字段提取器都是纯函数，只有姓名兜底会调用一次外部NER
// 协作方。没有跨调用状态，同一实例可被任意多个goroutine并发使用。
type UniversalParser struct {
	recognizer EntityRecognizer
	logger     zerolog.Logger
}

// ParserOption UniversalParser 构造选项
type ParserOption func(*UniversalParser)

// WithEntityRecognizer 设置姓名提取兜底用的实体识别协作方
// 不设置或传nil时跳过NER兜底，按"未识别到实体"处理
func WithEntityRecognizer(recognizer EntityRecognizer) ParserOption {
	return func(p *UniversalParser) {
		p.recognizer = recognizer
	}
}

// WithParserLogger 设置解析器日志
func WithParserLogger(l zerolog.Logger) ParserOption {
	return func(p *UniversalParser) {
		p.logger = l
	}
}

// NewUniversalParser 创建通用简历解析器
func NewUniversalParser(opts ...ParserOption) *UniversalParser {
	p := &UniversalParser{
		logger: logger.Logger.With().Str("component", "universal_parser").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse 对一份简历文本执行全部字段提取，聚合成结构化记录
// 空文本退化为全空记录；任何字段提取不出结果都表现为空值，不报错。
// 上游文本提取失败（空文本）同样走这条路径，解析不出东西是合法结果。
func (p *UniversalParser) Parse(ctx context.Context, text string) *types.ParsedRecord {
	record := &types.ParsedRecord{}
	record.Stats.TextLength = len(text)
	if text == "" {
		return record
	}

	name := ExtractName(ctx, text, p.recognizer)
	record.Personal = types.PersonalInfo{
		Name:     name,
		Email:    ExtractEmail(text, name),
		Phone:    ExtractPhone(text),
		Location: ExtractLocation(text),
	}

	record.Companies = ExtractCompanies(text)
	record.Skills = ExtractSkills(text)
	record.Education = ExtractEducation(text)
	record.Certifications = ExtractCertifications(text)
	record.Interests = ExtractInterests(text)
	record.References = ExtractReferences(text)

	record.Stats.CompaniesFound = len(record.Companies)
	record.Stats.SkillsFound = len(record.Skills)
	record.Stats.ReferencesFound = len(record.References)

	p.logger.Debug().
		Str("name", record.Personal.Name).
		Int("companies", record.Stats.CompaniesFound).
		Int("skills", record.Stats.SkillsFound).
		Int("references", record.Stats.ReferencesFound).
		Msg("简历解析完成")

	return record
}
