package processor

import (
	"context"
	"io"

	"github.com/cloudwego/eino/components/embedding"

	"resume-rag-go/internal/types"
)

// TextExtractor 文档文本提取接口，Tika与eino两个实现都满足
type TextExtractor interface {
	ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error)
	ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string, options interface{}) (string, map[string]interface{}, error)
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error)
}

// RecordParser 线性文本到结构化记录的解析接口
// 实现必须是全函数：空文本返回空记录，从不返回错误
type RecordParser interface {
	Parse(ctx context.Context, text string) *types.ParsedRecord
}

// ChunkBuilder 解析结果到检索块的构建接口
type ChunkBuilder interface {
	BuildChunks(record *types.ParsedRecord) []types.Chunk
}

// StructuredChunkBuilder 结构化JSON简历到检索块的构建接口
type StructuredChunkBuilder interface {
	BuildChunksFromJSON(data []byte) ([]types.Chunk, error)
}

// TextEmbedder 文本向量化接口 (符合 cloudwego/eino 规范)
type TextEmbedder interface {
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)
	GetDimensions() int
}

// VectorStore 向量存储接口
type VectorStore interface {
	StoreChunks(ctx context.Context, submissionUUID string, chunks []types.Chunk, embeddings [][]float64) ([]string, error)
	SearchChunks(ctx context.Context, queryVector []float64, limit int, filter map[string]interface{}) ([]types.RetrievedChunk, error)
}
