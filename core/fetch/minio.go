package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ObjectGetter 对象存储读取接口，storage.MinioClient 实现了它
type ObjectGetter interface {
	Bucket() string
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// MinioFetcher 把资源桶地址映射为对象键
// 支持 path-style（https://host/bucket/key）和已去掉桶名的 key
type MinioFetcher struct {
	objects ObjectGetter
}

func NewMinioFetcher(objects ObjectGetter) *MinioFetcher {
	return &MinioFetcher{objects: objects}
}

func (f *MinioFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	key, err := f.ObjectKey(rawURL)
	if err != nil {
		return nil, err
	}
	return f.objects.GetObject(ctx, key)
}

// ObjectKey 从地址中取出对象键
func (f *MinioFetcher) ObjectKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, f.objects.Bucket()+"/")
	if key == "" {
		return "", fmt.Errorf("no object key in %q", rawURL)
	}
	return key, nil
}
