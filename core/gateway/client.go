package gateway

import (
	"net/http"
	"time"
)

const (
	DefaultMedia   = "music"
	DefaultLimit   = 50
	DefaultCountry = "US"

	// DefaultTimeout bounds a single upstream fetch.
	DefaultTimeout = 10 * time.Second
)

// Client iTunes Search API 客户端
type Client struct {
	baseURL    string
	country    string
	httpClient *http.Client
}

// NewClient 创建新的API客户端
func NewClient(baseURL, country string) *Client {
	if country == "" {
		country = DefaultCountry
	}
	return &Client{
		baseURL: baseURL,
		country: country,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetBaseURL 设置API基础URL
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout 设置请求超时时间
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Request 一次上游查询的参数
type Request struct {
	Term    string
	Media   string
	Limit   int
	Country string
}

func (r Request) withDefaults(country string) Request {
	if r.Media == "" {
		r.Media = DefaultMedia
	}
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Country == "" {
		r.Country = country
	}
	return r
}
