package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"beatflow/logger"
	"beatflow/storage"
)

// SnapshotSource 快照只读接口，storage.SnapshotStore 满足该接口
type SnapshotSource interface {
	Latest(ctx context.Context) (*storage.Snapshot, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, *storage.BucketStats, error)
}

// SetSnapshots 启用快照查询接口
func (s *Server) SetSnapshots(src SnapshotSource) {
	s.snapshots = src
}

type snapshotListResponse struct {
	Objects []storage.ObjectInfo `json:"objects"`
	Count   int64                `json:"count"`
	Size    string               `json:"size"`
}

// HandleListSnapshots 列出 MinIO 中保存的目录快照
func (s *Server) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshots disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	objects, stats, err := s.snapshots.List(ctx, "")
	if err != nil {
		logger.Error("[Server] 列出快照失败", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "failed to list snapshots")
		return
	}
	if objects == nil {
		objects = []storage.ObjectInfo{}
	}
	writeJSON(w, http.StatusOK, snapshotListResponse{
		Objects: objects,
		Count:   stats.TotalObjects,
		Size:    storage.FormatSize(stats.TotalSize),
	})
}

// HandleLatestSnapshot 返回最近一次应用的目录快照
func (s *Server) HandleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshots disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	snap, err := s.snapshots.Latest(ctx)
	switch {
	case errors.Is(err, storage.ErrNoSnapshot):
		writeError(w, http.StatusNotFound, "no snapshot yet")
		return
	case err != nil:
		logger.Error("[Server] 读取最新快照失败", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "failed to read snapshot")
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, snap)
}
