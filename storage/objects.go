package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/samber/lo"
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

var audioExtensions = []string{".mp3", ".m4a", ".aac", ".flac", ".wav", ".ogg"}

// IsAudioKey reports whether an object key looks like an audio file.
func IsAudioKey(key string) bool {
	return lo.Contains(audioExtensions, strings.ToLower(path.Ext(key)))
}

// ListObjects 列出前缀下的所有对象并统计
func (g *Gateway) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}

		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, stats, nil
}

// ListAudio 只返回音频对象
func (g *Gateway) ListAudio(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects, _, err := g.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return lo.Filter(objects, func(o ObjectInfo, _ int) bool { return IsAudioKey(o.Key) }), nil
}

// Stats 统计前缀下的对象数量和大小
func (g *Gateway) Stats(ctx context.Context, prefix string) (*BucketStats, error) {
	_, stats, err := g.ListObjects(ctx, prefix)
	return stats, err
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
