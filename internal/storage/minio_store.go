package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOOptions MinIO对象存储配置
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOFileStore 基于MinIO的上传文件存储
type MinIOFileStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOFileStore 创建MinIO文件存储并确保bucket存在
func NewMinIOFileStore(ctx context.Context, opts MinIOOptions) (*MinIOFileStore, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("minio endpoint not configured")
	}
	if opts.Bucket == "" {
		opts.Bucket = "docchat-files"
	}

	// minio.New 的endpoint不带协议前缀
	endpoint := strings.TrimPrefix(opts.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOFileStore{client: client, bucket: opts.Bucket}, nil
}

func (s *MinIOFileStore) Save(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, name,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("上传对象失败: %w", err)
	}
	return nil
}

func (s *MinIOFileStore) Read(ctx context.Context, name string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象失败: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) {
			switch resp.Code {
			case "NoSuchKey":
				return nil, ErrNotFound
			case "AccessDenied":
				return nil, ErrPermission
			}
		}
		return nil, fmt.Errorf("读取对象失败: %w", err)
	}
	return data, nil
}

func (s *MinIOFileStore) List(ctx context.Context) ([]string, error) {
	var names []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列举对象失败: %w", object.Err)
		}
		names = append(names, object.Key)
	}
	return names, nil
}

func (s *MinIOFileStore) Remove(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	return nil
}
