package knowledge

import (
	"context"
	"fmt"
	"sync"
)

// memoryVectorStore 内存向量存储，用于测试和无持久化要求的场景
type memoryVectorStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string // 记录ID的首次写入顺序
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{
		records: make(map[string]Record),
	}
}

func (s *memoryVectorStore) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if len(record.Embedding) == 0 {
			return fmt.Errorf("记录 %s 的向量为空", record.ID)
		}
		if _, exists := s.records[record.ID]; !exists {
			s.order = append(s.order, record.ID)
		}
		s.records[record.ID] = record
	}
	return nil
}

func (s *memoryVectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	queryNorm := vectorNorm(embedding)
	if queryNorm == 0 {
		return nil, fmt.Errorf("查询向量的范数为零")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.records))
	for _, id := range s.order {
		record, ok := s.records[id]
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			Text:     record.Text,
			Metadata: record.Metadata,
			Score:    cosineSimilarity(embedding, record.Embedding, queryNorm),
		})
	}

	sortResultsByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *memoryVectorStore) ListSources(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var sources []string
	for _, id := range s.order {
		record, ok := s.records[id]
		if !ok {
			continue
		}
		if !seen[record.Metadata.Source] {
			seen[record.Metadata.Source] = true
			sources = append(sources, record.Metadata.Source)
		}
	}
	return sources, nil
}

func (s *memoryVectorStore) DeleteSource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.order[:0]
	for _, id := range s.order {
		record, ok := s.records[id]
		if ok && record.Metadata.Source == source {
			delete(s.records, id)
			continue
		}
		remaining = append(remaining, id)
	}
	s.order = remaining
	return nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

func (s *memoryVectorStore) Close() error {
	return nil
}
