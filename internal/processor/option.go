package processor

import (
	"github.com/rs/zerolog"

	"resume-rag-go/internal/storage"
)

// Components 聚合入库流水线的全部功能组件，便于测试时整体替换
type Components struct {
	TextExtractor     TextExtractor
	RecordParser      RecordParser
	ChunkBuilder      ChunkBuilder
	StructuredBuilder StructuredChunkBuilder
	Embedder          TextEmbedder

	// 存储层依赖
	Storage *storage.Storage
}

// Settings 纯配置项，不含业务组件
type Settings struct {
	DefaultDimensions int
	ParserVersion     string
	Debug             bool
	Logger            zerolog.Logger
}

// ComponentOpt 组件选项，只改变 Components 内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项，只改变 Settings 内的字段
type SettingOpt func(*Settings)

func WithTextExtractor(extractor TextExtractor) ComponentOpt {
	return func(c *Components) {
		c.TextExtractor = extractor
	}
}

func WithRecordParser(parser RecordParser) ComponentOpt {
	return func(c *Components) {
		c.RecordParser = parser
	}
}

func WithChunkBuilder(builder ChunkBuilder) ComponentOpt {
	return func(c *Components) {
		c.ChunkBuilder = builder
	}
}

func WithStructuredBuilder(builder StructuredChunkBuilder) ComponentOpt {
	return func(c *Components) {
		c.StructuredBuilder = builder
	}
}

func WithEmbedder(embedder TextEmbedder) ComponentOpt {
	return func(c *Components) {
		c.Embedder = embedder
	}
}

func WithStorage(s *storage.Storage) ComponentOpt {
	return func(c *Components) {
		c.Storage = s
	}
}

func WithDebug(debug bool) SettingOpt {
	return func(s *Settings) {
		s.Debug = debug
	}
}

func WithProcessorLogger(logger zerolog.Logger) SettingOpt {
	return func(s *Settings) {
		s.Logger = logger
	}
}

func WithDefaultDimensions(dimensions int) SettingOpt {
	return func(s *Settings) {
		s.DefaultDimensions = dimensions
	}
}

func WithParserVersion(version string) SettingOpt {
	return func(s *Settings) {
		s.ParserVersion = version
	}
}
