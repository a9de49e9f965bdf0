package gateway

import (
	"context"
	"net/http"
	"time"

	"beatflow/model"
)

// ProxyClient reads from a deployed search proxy instead of iTunes directly.
// The proxy speaks the same {resultCount, results} shape, so the request
// path is shared with Client.
type ProxyClient struct {
	inner *Client
}

// NewProxyClient 创建代理客户端
func NewProxyClient(proxyURL, country string, timeout time.Duration) *ProxyClient {
	c := NewClient(proxyURL, country)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &ProxyClient{inner: c}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (p *ProxyClient) WithHTTPClient(hc *http.Client) *ProxyClient {
	p.inner.httpClient = hc
	return p
}

// Search 通过代理查询
func (p *ProxyClient) Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error) {
	return p.inner.Search(ctx, term, limit)
}
