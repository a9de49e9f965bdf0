package plugin

import (
	"context"
	"fmt"
	"strings"

	"beatflow/model"
)

// SnapshotReader is satisfied by storage.SnapshotStore.
type SnapshotReader interface {
	LatestTracks(ctx context.Context) ([]model.Track, error)
}

// SnapshotPlugin 从最近一次保存的目录快照中检索
// 上游不可用时作为回退来源
type SnapshotPlugin struct {
	reader SnapshotReader
}

// NewSnapshotPlugin 创建快照插件
func NewSnapshotPlugin(reader SnapshotReader) *SnapshotPlugin {
	return &SnapshotPlugin{reader: reader}
}

// GetSource 返回插件来源标识
func (p *SnapshotPlugin) GetSource() string {
	return SourceSnapshot
}

// Search matches the term case-insensitively against name, artist,
// collection and genre of the snapshot tracks, keeping snapshot order.
func (p *SnapshotPlugin) Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error) {
	tracks, err := p.reader.LatestTracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot search failed: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]model.RawTrack, 0)
	for _, t := range tracks {
		if limit > 0 && len(out) >= limit {
			break
		}
		if needle != "" && !matchesTerm(t, needle) {
			continue
		}
		out = append(out, model.FromTrack(t))
	}
	return out, nil
}

func matchesTerm(t model.Track, needle string) bool {
	for _, field := range []string{t.Name, t.Artist, t.Collection, t.Genre} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
