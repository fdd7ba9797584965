package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// ErrPermission 文件不可读
var ErrPermission = errors.New("file not readable")

// FileStore 原始上传文件存储抽象
//
// 文件名形如 "{opaque_id}{原始扩展名}"，内容查询按前缀匹配opaque_id。
type FileStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, name string) error
}

// LocalFileStore 本地磁盘文件存储
type LocalFileStore struct {
	basePath string
}

// NewLocalFileStore 创建本地文件存储，确保目录存在
func NewLocalFileStore(basePath string) (*LocalFileStore, error) {
	if basePath == "" {
		basePath = "./data/uploaded_files"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	return &LocalFileStore{basePath: basePath}, nil
}

func (s *LocalFileStore) Save(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(s.basePath, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}

func (s *LocalFileStore) Read(ctx context.Context, name string) ([]byte, error) {
	path := filepath.Join(s.basePath, filepath.Base(name))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, ErrPermission
		}
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return data, nil
}

func (s *LocalFileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("读取上传目录失败: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *LocalFileStore) Remove(ctx context.Context, name string) error {
	path := filepath.Join(s.basePath, filepath.Base(name))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}
