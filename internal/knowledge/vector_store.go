package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// ChunkMetadata 块的元数据：来源文档显示名、块序号、文件格式
type ChunkMetadata struct {
	Source   string `json:"source"`
	ChunkID  int    `json:"chunk_id"`
	FileType string `json:"file_type"`
}

// Record 向量库的持久化单元
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  ChunkMetadata
}

// SearchResult 检索结果，Score越大越相似
type SearchResult struct {
	Text     string
	Metadata ChunkMetadata
	Score    float64
}

// RecordID 由元数据构造记录主键："{source}_{chunk_id}"
//
// 同名文档重传产生相同主键，写入按覆盖处理，避免静默堆积重复记录。
func RecordID(meta ChunkMetadata) string {
	return fmt.Sprintf("%s_%d", meta.Source, meta.ChunkID)
}

// VectorStore 向量存储抽象
//
// 实现必须保证：Upsert按ID覆盖；DeleteSource按来源精确匹配、不存在时为空操作，
// 且删除对并发查询是原子的（查询不会看到删到一半的文档）；索引可在进程重启后重新打开。
type VectorStore interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error)
	ListSources(ctx context.Context) ([]string, error)
	DeleteSource(ctx context.Context, source string) error
	Ready() bool
	Close() error
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32, normA float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) != len(b) {
		// 维度不一致时按较短对齐
		minLen := len(a)
		if len(b) < minLen {
			minLen = len(b)
		}
		a = a[:minLen]
		b = b[:minLen]
	}

	var dot float64
	var normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * math.Sqrt(normB))
}

func sortResultsByScore(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
