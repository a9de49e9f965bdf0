package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"beatflow/logger"

	"github.com/minio/minio-go/v7"
)

// BucketStats 快照前缀下的统计信息
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
}

// List 列出指定前缀下的快照对象，按名称排序（即按时间排序）
func (s *SnapshotStore) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	if prefix == "" {
		prefix = SnapshotPrefix
	}

	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("failed to list objects: %w", object.Err)
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
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, stats, nil
}

// DeletePrefix 删除前缀下的所有对象，返回删除数量
func (s *SnapshotStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("delete needs a prefix")
	}

	var toDelete []minio.ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			logger.Warn("[Snapshot] 列出对象时出错", logger.ErrorField(object.Err))
			continue
		}
		toDelete = append(toDelete, object)
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(toDelete))
	for _, obj := range toDelete {
		objectsCh <- obj
	}
	close(objectsCh)

	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return len(toDelete), nil
}

// Prune keeps the newest `keep` timestamped snapshots and deletes the rest.
// catalog/latest.json is never pruned.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) (int, error) {
	objects, _, err := s.List(ctx, SnapshotPrefix)
	if err != nil {
		return 0, err
	}

	var stamped []string
	for _, obj := range objects {
		if obj.Key != latestKey {
			stamped = append(stamped, obj.Key)
		}
	}
	if keep < 0 {
		keep = 0
	}
	if len(stamped) <= keep {
		return 0, nil
	}

	removed := 0
	for _, key := range stamped[:len(stamped)-keep] {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
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
