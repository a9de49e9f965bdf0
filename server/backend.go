package server

import (
	"fmt"
	"strings"

	"beatflow/cache"
	"beatflow/config"
	"beatflow/core/catalog"
	"beatflow/core/plugin"
	"beatflow/db"
	"beatflow/logger"
	"beatflow/storage"
)

// Slot backends selectable with SLOT_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
)

// OpenSlot 根据 SLOT_BACKEND 创建持久化槽位，返回的 closer 负责释放连接
func OpenSlot(cfg *config.Config) (storage.Slot, func(), error) {
	noop := func() {}

	switch strings.ToLower(cfg.SlotBackend) {
	case BackendMemory:
		return storage.NewMemorySlot(), noop, nil

	case "", BackendFile:
		slot, err := storage.NewFileSlot(cfg.SlotDir)
		if err != nil {
			return nil, noop, err
		}
		return slot, noop, nil

	case BackendRedis:
		if err := cache.ConnectRedis(cfg); err != nil {
			return nil, noop, err
		}
		closer := func() {
			if err := cache.CloseRedis(); err != nil {
				logger.Warn("[Server] 关闭 Redis 失败", logger.ErrorField(err))
			}
		}
		return cache.NewRedisSlot(cache.RedisClient, cfg.SlotTTL), closer, nil

	case BackendMySQL:
		if err := db.ConnectGormDB(cfg); err != nil {
			return nil, noop, err
		}
		closer := func() {
			if err := db.CloseGormDB(); err != nil {
				logger.Warn("[Server] 关闭数据库失败", logger.ErrorField(err))
			}
		}
		return db.NewGormSlot(db.GormDB), closer, nil

	default:
		return nil, noop, fmt.Errorf("unknown slot backend %q", cfg.SlotBackend)
	}
}

// OpenSnapshots 配置了 MinIO 时连接快照存储，否则返回 nil
func OpenSnapshots(cfg *config.Config) (*storage.SnapshotStore, error) {
	if !cfg.SnapshotsEnabled() {
		return nil, nil
	}
	return storage.NewSnapshotStore(cfg)
}

// NewSearcher 按 SEARCH_SOURCE / SEARCH_FALLBACK 组装数据源
func NewSearcher(cfg *config.Config, snapshots *storage.SnapshotStore) (*plugin.Manager, error) {
	m := plugin.NewManager()
	m.Register(plugin.NewItunesPlugin(cfg.ItunesSearchURL, cfg.MarketCountry, cfg.FetchTimeout))
	if cfg.SearchProxyURL != "" {
		m.Register(plugin.NewProxyPlugin(cfg.SearchProxyURL, cfg.MarketCountry, cfg.FetchTimeout))
	}
	if snapshots != nil {
		m.Register(plugin.NewSnapshotPlugin(snapshots))
	}

	if cfg.SearchSource != "" {
		if err := m.SetDefault(strings.ToLower(cfg.SearchSource)); err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(cfg.SearchFallback) {
	case "", "none":
	case plugin.SourceSnapshot:
		if snapshots == nil {
			logger.Warn("[Server] SEARCH_FALLBACK=snapshot 但未配置 MinIO，回退已禁用")
			break
		}
		if err := m.SetFallback(plugin.SourceSnapshot); err != nil {
			return nil, err
		}
	default:
		if err := m.SetFallback(strings.ToLower(cfg.SearchFallback)); err != nil {
			return nil, err
		}
	}

	primary, fallback := m.Sources()
	logger.Info("[Server] 数据源已就绪", logger.String("primary", primary), logger.String("fallback", fallback))
	return m, nil
}

// NewAggregator 组装目录聚合器；词条文件读取失败时使用内置词条
func NewAggregator(cfg *config.Config, searcher catalog.Searcher, snapshots *storage.SnapshotStore) *catalog.Aggregator {
	terms := config.DefaultTerms()
	if cfg.TermsFile != "" {
		loaded, err := config.LoadTerms(cfg.TermsFile)
		if err != nil {
			logger.Warn("[Server] 读取词条文件失败，使用内置词条",
				logger.String("path", cfg.TermsFile),
				logger.ErrorField(err))
		}
		terms = loaded
	}

	opts := []catalog.Option{catalog.WithTimeout(cfg.FetchTimeout)}
	if snapshots != nil {
		opts = append(opts, catalog.WithSnapshotSink(snapshots))
	}
	return catalog.NewAggregator(searcher, terms, opts...)
}
