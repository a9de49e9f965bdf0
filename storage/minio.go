package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"beatflow/config"
	"beatflow/logger"
	"beatflow/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// SnapshotPrefix 目录快照在存储桶中的前缀
	SnapshotPrefix = "catalog/"
	latestKey      = SnapshotPrefix + "latest.json"
)

// ErrNoSnapshot is returned when the bucket holds no catalog snapshot yet.
var ErrNoSnapshot = errors.New("no catalog snapshot")

// Snapshot 一次目录加载的结果
type Snapshot struct {
	Generation uint64        `json:"generation"`
	Term       string        `json:"term,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	Tracks     []model.Track `json:"tracks"`
}

// SnapshotStore 将目录快照保存到 MinIO
type SnapshotStore struct {
	client *minio.Client
	bucket string
}

// NewSnapshotStore 连接 MinIO 并确保存储桶存在
func NewSnapshotStore(cfg *config.Config) (*SnapshotStore, error) {
	logger.Info("[Snapshot] 正在连接 MinIO",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("[Snapshot] 已创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	return NewSnapshotStoreWithClient(client, cfg.MinioBucket), nil
}

// NewSnapshotStoreWithClient wraps an existing client.
func NewSnapshotStoreWithClient(client *minio.Client, bucket string) *SnapshotStore {
	return &SnapshotStore{client: client, bucket: bucket}
}

// SnapshotKey 生成快照对象名，按时间排序
func SnapshotKey(snap Snapshot) string {
	return fmt.Sprintf("%s%s-%06d.json", SnapshotPrefix, snap.CreatedAt.UTC().Format("20060102T150405"), snap.Generation)
}

// Save writes the snapshot under its own key and refreshes catalog/latest.json.
func (s *SnapshotStore) Save(ctx context.Context, snap Snapshot) (string, error) {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := SnapshotKey(snap)
	for _, name := range []string{key, latestKey} {
		_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload snapshot %s: %w", name, err)
		}
	}

	logger.Info("[Snapshot] 快照已保存",
		logger.String("key", key),
		logger.Int("tracks", len(snap.Tracks)))
	return key, nil
}

// Latest 读取最近一次保存的快照
func (s *SnapshotStore) Latest(ctx context.Context) (*Snapshot, error) {
	return s.Load(ctx, latestKey)
}

// Load reads one snapshot object.
func (s *SnapshotStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// LatestTracks 返回最近快照中的曲目，供回退数据源使用
func (s *SnapshotStore) LatestTracks(ctx context.Context) ([]model.Track, error) {
	snap, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Tracks, nil
}
