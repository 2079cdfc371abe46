package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/storage"
)

// BuildTextExtractor 按配置选择文本提取器实现
// 配置了Tika就走Tika服务，否则退回进程内的eino解析
func BuildTextExtractor(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (TextExtractor, error) {
	if cfg.Tika.Type == "tika" && cfg.Tika.ServerURL != "" {
		var tikaOptions []parser.TikaOption
		switch cfg.Tika.MetadataMode {
		case "full":
			tikaOptions = append(tikaOptions, parser.WithFullMetadata(true))
		case "none":
			tikaOptions = append(tikaOptions, parser.WithMinimalMetadata(false), parser.WithFullMetadata(false))
		default:
			tikaOptions = append(tikaOptions, parser.WithMinimalMetadata(true))
		}
		if cfg.Tika.Timeout > 0 {
			tikaOptions = append(tikaOptions, parser.WithTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
		}
		tikaOptions = append(tikaOptions, parser.WithTikaLogger(logger))
		return parser.NewTikaPDFExtractor(cfg.Tika.ServerURL, tikaOptions...), nil
	}
	return parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(logger))
}

// NewIngestorFromConfig 从配置组装完整的入库流水线
func NewIngestorFromConfig(ctx context.Context, cfg *config.Config, storageManager *storage.Storage, logger zerolog.Logger) (*ResumeIngestor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	extractor, err := BuildTextExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("创建文本提取器失败: %w", err)
	}

	parserOpts := []parser.ParserOption{parser.WithParserLogger(logger)}
	if cfg.NER.ServerURL != "" {
		var nerOpts []parser.NEROption
		if cfg.NER.TimeoutSeconds > 0 {
			nerOpts = append(nerOpts, parser.WithNERTimeout(time.Duration(cfg.NER.TimeoutSeconds)*time.Second))
		}
		parserOpts = append(parserOpts, parser.WithEntityRecognizer(parser.NewHTTPEntityRecognizer(cfg.NER.ServerURL, nerOpts...)))
	}

	embedder, err := parser.NewOllamaEmbedder(cfg.Ollama)
	if err != nil {
		return nil, fmt.Errorf("创建Ollama嵌入器失败: %w", err)
	}

	components := &Components{
		TextExtractor:     extractor,
		RecordParser:      parser.NewUniversalParser(parserOpts...),
		ChunkBuilder:      parser.NewRecordChunkBuilder(),
		StructuredBuilder: parser.NewStructuredChunkBuilder(),
		Embedder:          embedder,
		Storage:           storageManager,
	}
	settings := &Settings{
		DefaultDimensions: cfg.Qdrant.Dimension,
		ParserVersion:     cfg.ActiveParserVersion,
		Debug:             cfg.Logger.Level == "debug",
		Logger:            logger,
	}
	return NewResumeIngestor(components, settings)
}
