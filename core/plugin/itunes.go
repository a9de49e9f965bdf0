package plugin

import (
	"context"
	"fmt"
	"time"

	"beatflow/core/gateway"
	"beatflow/logger"
	"beatflow/model"
)

const (
	SourceItunes   = "itunes"
	SourceProxy    = "proxy"
	SourceSnapshot = "snapshot"

	fallbackTimeout = 10 * time.Second
)

// ItunesPlugin 直接查询 iTunes Search API
type ItunesPlugin struct {
	client *gateway.Client
}

// NewItunesPlugin 创建 iTunes 插件
func NewItunesPlugin(baseURL, country string, timeout time.Duration) *ItunesPlugin {
	client := gateway.NewClient(baseURL, country)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &ItunesPlugin{client: client}
}

// GetSource 返回插件来源标识
func (p *ItunesPlugin) GetSource() string {
	return SourceItunes
}

// Search 搜索曲目
func (p *ItunesPlugin) Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error) {
	tracks, err := p.client.Search(ctx, term, limit)
	if err != nil {
		logger.Debug("[ItunesPlugin] 搜索失败", logger.String("term", term), logger.ErrorField(err))
		return nil, fmt.Errorf("itunes search failed: %w", err)
	}
	return tracks, nil
}

// ProxyPlugin 通过已部署的搜索代理查询，结果已按风格过滤
type ProxyPlugin struct {
	client *gateway.ProxyClient
}

// NewProxyPlugin 创建代理插件
func NewProxyPlugin(proxyURL, country string, timeout time.Duration) *ProxyPlugin {
	return &ProxyPlugin{client: gateway.NewProxyClient(proxyURL, country, timeout)}
}

// GetSource 返回插件来源标识
func (p *ProxyPlugin) GetSource() string {
	return SourceProxy
}

// Search 搜索曲目
func (p *ProxyPlugin) Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error) {
	tracks, err := p.client.Search(ctx, term, limit)
	if err != nil {
		logger.Debug("[ProxyPlugin] 搜索失败", logger.String("term", term), logger.ErrorField(err))
		return nil, fmt.Errorf("proxy search failed: %w", err)
	}
	return tracks, nil
}
