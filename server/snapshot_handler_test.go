package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"beatflow/model"
	"beatflow/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	latest *storage.Snapshot
	err    error
}

func (f *fakeSnapshots) Latest(ctx context.Context) (*storage.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, storage.ErrNoSnapshot
	}
	return f.latest, nil
}

func (f *fakeSnapshots) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, *storage.BucketStats, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return []storage.ObjectInfo{{Key: "catalog/latest.json", Size: 2048}}, &storage.BucketStats{TotalObjects: 1, TotalSize: 2048}, nil
}

func newSnapshotEnv(t *testing.T, src SnapshotSource) *testEnv {
	t.Helper()
	env := newTestEnv(t, tableSearcher{})
	if src == nil {
		return env
	}
	// rebuild the server with snapshots enabled on the same sessions
	s := New(nil, env.agg, env.sessions, http.NotFoundHandler())
	s.SetSnapshots(src)
	env.srv.Config.Handler = s.Router()
	return env
}

func TestSnapshots_Disabled(t *testing.T) {
	env := newSnapshotEnv(t, nil)

	var errBody errorResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/snapshots/latest", "", &errBody))
	assert.Equal(t, "snapshots disabled", errBody.Error)
}

func TestSnapshots_Latest(t *testing.T) {
	src := &fakeSnapshots{}
	env := newSnapshotEnv(t, src)

	var errBody errorResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/snapshots/latest", "", &errBody))

	src.latest = &storage.Snapshot{
		Generation: 3,
		CreatedAt:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Tracks:     []model.Track{{ID: "1", Name: "One", Artist: "A"}},
	}
	var snap storage.Snapshot
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/snapshots/latest", "", &snap))
	assert.Equal(t, uint64(3), snap.Generation)
	assert.Len(t, snap.Tracks, 1)

	src.err = errors.New("minio down")
	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodGet, "/api/snapshots/latest", "", &errBody))
}

func TestSnapshots_List(t *testing.T) {
	env := newSnapshotEnv(t, &fakeSnapshots{})

	var list snapshotListResponse
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/snapshots", "", &list))
	assert.Equal(t, int64(1), list.Count)
	assert.Equal(t, "2.0 KB", list.Size)
	require.Len(t, list.Objects, 1)
}
