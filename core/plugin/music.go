package plugin

import (
	"context"
	"fmt"
	"sync"

	"beatflow/logger"
	"beatflow/model"
)

// SearchPlugin 曲目数据源插件接口
// 统一 iTunes 直连、代理、快照回退等来源
type SearchPlugin interface {
	// Search 搜索曲目
	// term: 搜索词条
	// limit: 返回数量限制
	Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error)

	// GetSource 获取插件来源标识
	GetSource() string
}

// Manager 插件管理器
// 主数据源失败时可选地回退到另一个来源
type Manager struct {
	mu       sync.RWMutex
	plugins  map[string]SearchPlugin
	primary  string
	fallback string
}

// NewManager 创建插件管理器
func NewManager() *Manager {
	return &Manager{
		plugins: make(map[string]SearchPlugin),
	}
}

// Register 注册插件；第一个注册的插件成为默认来源
func (m *Manager) Register(p SearchPlugin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins[p.GetSource()] = p
	if m.primary == "" {
		m.primary = p.GetSource()
	}
}

// Get 获取指定来源的插件
func (m *Manager) Get(source string) SearchPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plugins[source]
}

// SetDefault 设置主数据源
func (m *Manager) SetDefault(source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plugins[source]; !ok {
		return fmt.Errorf("unknown search source %q", source)
	}
	m.primary = source
	return nil
}

// SetFallback sets the source consulted when the primary fails. An empty
// source disables the fallback.
func (m *Manager) SetFallback(source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if source == "" {
		m.fallback = ""
		return nil
	}
	if _, ok := m.plugins[source]; !ok {
		return fmt.Errorf("unknown fallback source %q", source)
	}
	m.fallback = source
	return nil
}

// Sources 返回当前主数据源与回退数据源
func (m *Manager) Sources() (primary, fallback string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.primary, m.fallback
}

// Search 使用主数据源搜索，失败时尝试回退数据源
func (m *Manager) Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error) {
	m.mu.RLock()
	primary := m.plugins[m.primary]
	fallback := m.plugins[m.fallback]
	m.mu.RUnlock()

	if primary == nil {
		return nil, fmt.Errorf("no search source registered")
	}

	tracks, err := primary.Search(ctx, term, limit)
	if err == nil || fallback == nil || fallback == primary {
		return tracks, err
	}

	// 回退数据源只使用调用方剩余的时间，超时后不再尝试
	if ctx.Err() != nil {
		logger.Warn("[PluginManager] 主数据源失败且已无剩余时间，跳过回退数据源",
			logger.String("term", term),
			logger.String("primary", primary.GetSource()),
			logger.ErrorField(err))
		return nil, err
	}

	logger.Warn("[PluginManager] 主数据源失败，使用回退数据源",
		logger.String("term", term),
		logger.String("primary", primary.GetSource()),
		logger.String("fallback", fallback.GetSource()),
		logger.ErrorField(err))

	fbCtx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	fbTracks, fbErr := fallback.Search(fbCtx, term, limit)
	if fbErr != nil {
		return nil, fmt.Errorf("%w (fallback %s: %v)", err, fallback.GetSource(), fbErr)
	}
	return fbTracks, nil
}
