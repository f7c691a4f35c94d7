package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ClipForge/config"
	"ClipForge/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// MinioClient 封装了 MinIO 客户端，绑定一个资源桶
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinioClient 创建一个新的 MinIO 客户端
func NewMinioClient(endpoint, accessKey, secretKey, bucketName, region string, useSSL bool) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	return &MinioClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// NewMinioFromConfig 按配置创建客户端并检查资源桶
// 未配置 endpoint 时返回 nil, nil
func NewMinioFromConfig(ctx context.Context, cfg *config.Config) (*MinioClient, error) {
	if cfg.MinioEndpoint == "" {
		return nil, nil
	}
	m, err := NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioRegion, cfg.MinioUseSSL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("存储桶 %s 不存在", m.bucketName)
	}

	logger.Info("MinIO 客户端初始化成功",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", m.bucketName))
	return m, nil
}

func (m *MinioClient) Bucket() string {
	return m.bucketName
}

// GetObject 读取对象全部内容
func (m *MinioClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 失败: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("读取对象 %s 内容失败: %w", key, err)
	}
	return data, nil
}
