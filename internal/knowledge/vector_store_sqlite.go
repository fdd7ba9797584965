package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	file_type   TEXT NOT NULL,
	content     TEXT NOT NULL,
	embedding   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// sqliteVectorStore 基于SQLite的本地持久化向量存储
//
// 向量以JSON存储，检索时在Go侧做余弦相似度暴力排序。
// 单机文档问答的数据量下足够，且重启后索引直接可用。
type sqliteVectorStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteVectorStore 在指定数据目录创建（或打开）SQLite向量存储
func NewSQLiteVectorStore(dataDir string) (VectorStore, error) {
	if dataDir == "" {
		dataDir = "./data/vector_db"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	dbPath := filepath.Join(dataDir, "chunks.db")

	// WAL模式提升并发读写表现；busy_timeout避免写锁竞争直接报错
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("打开向量库失败: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化向量库表结构失败: %w", err)
	}

	return &sqliteVectorStore{db: db, path: dbPath}, nil
}

func (s *sqliteVectorStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, chunk_index, file_type, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source      = excluded.source,
			chunk_index = excluded.chunk_index,
			file_type   = excluded.file_type,
			content     = excluded.content,
			embedding   = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("准备写入语句失败: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		if len(record.Embedding) == 0 {
			return fmt.Errorf("记录 %s 的向量为空", record.ID)
		}
		embeddingJSON, err := json.Marshal(record.Embedding)
		if err != nil {
			return fmt.Errorf("序列化向量失败: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			record.ID,
			record.Metadata.Source,
			record.Metadata.ChunkID,
			record.Metadata.FileType,
			record.Text,
			string(embeddingJSON),
		); err != nil {
			return fmt.Errorf("写入记录 %s 失败: %w", record.ID, err)
		}
	}

	return tx.Commit()
}

func (s *sqliteVectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error) {
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

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, chunk_index, file_type, content, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			meta          ChunkMetadata
			content       string
			embeddingJSON string
		)
		if err := rows.Scan(&meta.Source, &meta.ChunkID, &meta.FileType, &content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("读取记录失败: %w", err)
		}
		var stored []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &stored); err != nil {
			continue
		}
		results = append(results, SearchResult{
			Text:     content,
			Metadata: meta,
			Score:    cosineSimilarity(embedding, stored, queryNorm),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历记录失败: %w", err)
	}

	sortResultsByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *sqliteVectorStore) ListSources(ctx context.Context) ([]string, error) {
	// 按首次写入顺序返回，保证列表结果稳定
	rows, err := s.db.QueryContext(ctx,
		`SELECT source FROM chunks GROUP BY source ORDER BY MIN(rowid)`)
	if err != nil {
		return nil, fmt.Errorf("获取文档列表失败: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("读取文档名失败: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (s *sqliteVectorStore) DeleteSource(ctx context.Context, source string) error {
	// 单条DELETE语句，删除对并发查询原子可见
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source); err != nil {
		return fmt.Errorf("删除文档 %s 失败: %w", source, err)
	}
	return nil
}

func (s *sqliteVectorStore) Ready() bool {
	return s.db != nil && s.db.Ping() == nil
}

func (s *sqliteVectorStore) Close() error {
	return s.db.Close()
}
