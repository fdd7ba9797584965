package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/docchat/backend-go/internal/logger"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	VectorSize int
	Distance   string
	UseTLS     bool
	Timeout    time.Duration
}

// milvusVectorStore 面向生产部署的Milvus向量存储
type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int
	distance     string
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "doc_chunks"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	milvusClient, err := client.NewClient(
		context.Background(),
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
		distance:     formatMilvusDistance(opts.Distance),
	}, nil
}

func formatMilvusDistance(value string) string {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return "IP"
	case "L2", "EUCLIDEAN":
		return "L2"
	default:
		return "COSINE"
	}
}

func (s *milvusVectorStore) metricType() entity.MetricType {
	return entity.MetricType(s.distance)
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    "document chunk vectors",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "source",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       "file_type",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "16"},
			},
			{
				Name:       "content",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:       "vector",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.vectorSize)},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	var index entity.Index
	index, err = entity.NewIndexHNSW(s.metricType(), 8, 64)
	if err != nil {
		index, err = entity.NewIndexIvfFlat(s.metricType(), 128)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
		logger.Warn("failed to create index",
			zap.String("collection", s.collection), zap.Error(err))
	}

	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

func (s *milvusVectorStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	ids := make([]string, 0, len(records))
	sources := make([]string, 0, len(records))
	chunkIndexes := make([]int64, 0, len(records))
	fileTypes := make([]string, 0, len(records))
	contents := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))

	for _, record := range records {
		if len(record.Embedding) == 0 {
			return fmt.Errorf("记录 %s 的向量为空", record.ID)
		}
		embedding := record.Embedding
		if len(embedding) != s.vectorSize {
			// 维度不足补零，超出截断
			padded := make([]float32, s.vectorSize)
			copy(padded, embedding)
			embedding = padded
		}
		ids = append(ids, record.ID)
		sources = append(sources, record.Metadata.Source)
		chunkIndexes = append(chunkIndexes, int64(record.Metadata.ChunkID))
		fileTypes = append(fileTypes, record.Metadata.FileType)
		contents = append(contents, record.Text)
		vectors = append(vectors, embedding)
	}

	// 先删后插，保证相同ID的重传是覆盖而不是堆积
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	deleteExpr := fmt.Sprintf("id in [%s]", strings.Join(quoted, ", "))
	if err := s.milvusClient.Delete(ctx, s.collection, "", deleteExpr); err != nil {
		return fmt.Errorf("milvus delete before insert failed: %w", err)
	}

	_, err := s.milvusClient.Insert(ctx, s.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("file_type", fileTypes),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus insert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("failed to flush after insert",
			zap.String("collection", s.collection), zap.Error(err))
	}

	return nil
}

func (s *milvusVectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		[]string{"source", "chunk_index", "file_type", "content"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"vector",
		s.metricType(),
		limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []SearchResult{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}
	if result.ResultCount == 0 {
		return []SearchResult{}, nil
	}

	var (
		sources      []string
		chunkIndexes []int64
		fileTypes    []string
		contents     []string
	)
	for _, field := range result.Fields {
		switch field.Name() {
		case "source":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				sources = col.Data()
			}
		case "chunk_index":
			if col, ok := field.(*entity.ColumnInt64); ok {
				chunkIndexes = col.Data()
			}
		case "file_type":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				fileTypes = col.Data()
			}
		case "content":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				contents = col.Data()
			}
		}
	}

	results := make([]SearchResult, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		var meta ChunkMetadata
		if i < len(sources) {
			meta.Source = sources[i]
		}
		if i < len(chunkIndexes) {
			meta.ChunkID = int(chunkIndexes[i])
		}
		if i < len(fileTypes) {
			meta.FileType = fileTypes[i]
		}
		content := ""
		if i < len(contents) {
			content = contents[i]
		}
		score := float64(0)
		if i < len(result.Scores) {
			score = float64(result.Scores[i])
		}
		results = append(results, SearchResult{
			Text:     content,
			Metadata: meta,
			Score:    score,
		})
	}

	return results, nil
}

func (s *milvusVectorStore) ListSources(ctx context.Context) ([]string, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	resultSet, err := s.milvusClient.Query(ctx, s.collection, nil,
		"chunk_index >= 0", []string{"source"})
	if err != nil {
		return nil, fmt.Errorf("milvus query failed: %w", err)
	}

	seen := make(map[string]bool)
	var sources []string
	for _, column := range resultSet {
		if column.Name() != "source" {
			continue
		}
		col, ok := column.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		for _, source := range col.Data() {
			if !seen[source] {
				seen[source] = true
				sources = append(sources, source)
			}
		}
	}
	return sources, nil
}

func (s *milvusVectorStore) DeleteSource(ctx context.Context, source string) error {
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	expr := fmt.Sprintf("source == %s", strconv.Quote(source))
	if err := s.milvusClient.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}
	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("failed to flush after delete",
			zap.String("collection", s.collection), zap.Error(err))
	}
	return nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

func (s *milvusVectorStore) Close() error {
	if s.milvusClient == nil {
		return nil
	}
	return s.milvusClient.Close()
}
