package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"ClipForge/model"

	"github.com/minio/minio-go/v7"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// ListObjects 列出前缀下的对象并汇总统计
func (m *MinioClient) ListObjects(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, *BucketStats, error) {
	var objects []ObjectInfo

	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, summarize(objects), nil
}

func summarize(objects []ObjectInfo) *BucketStats {
	stats := &BucketStats{}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
	}
	return stats
}

// KindUsage 按资源类型统计占用空间
func KindUsage(objects []ObjectInfo) map[model.AssetKind]int64 {
	usage := make(map[model.AssetKind]int64)
	for _, obj := range objects {
		usage[model.KindOf(path.Base(obj.Key))] += obj.Size
	}
	return usage
}

// PrintBucketStatus 打印存储桶状态
func (m *MinioClient) PrintBucketStatus(ctx context.Context, w io.Writer, prefix string, showFiles bool) error {
	objects, stats, err := m.ListObjects(ctx, prefix, true)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "📊 存储桶状态报告: %s\n", m.bucketName)
	fmt.Fprintf(w, "🔍 前缀过滤: %s\n", prefix)
	fmt.Fprintf(w, "📝 总文件数: %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "💾 总存储大小: %s\n", FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "🕒 最后更新时间: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}

	usage := KindUsage(objects)
	kinds := make([]string, 0, len(usage))
	for k := range usage {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	fmt.Fprintln(w, "\n📦 类型占用:")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-16s %s\n", k, FormatSize(usage[model.AssetKind(k)]))
	}

	if showFiles {
		fmt.Fprintln(w, "\n📋 文件列表:")
		for _, obj := range objects {
			fmt.Fprintf(w, "  ├─ %s (%s, %s)\n", obj.Key, FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
