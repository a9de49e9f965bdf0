package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"beatflow/logger"
)

// ProxyHandler 搜索代理：转发查询到 iTunes 并按风格过滤结果
type ProxyHandler struct {
	client *Client
}

// NewProxyHandler 创建代理处理器
func NewProxyHandler(client *Client) *ProxyHandler {
	return &ProxyHandler{client: client}
}

type proxyResponse struct {
	ResultCount int               `json:"resultCount"`
	Results     []json.RawMessage `json:"results"`
}

type proxyError struct {
	Error string `json:"error"`
}

// SetCORSHeaders writes the permissive cross-origin headers the browser
// client relies on.
func SetCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

// ServeHTTP 处理代理请求
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	SetCORSHeaders(w.Header())

	if r.Method != http.MethodGet {
		writeProxyJSON(w, http.StatusMethodNotAllowed, proxyError{Error: "Method not allowed"})
		return
	}

	q := r.URL.Query()
	term := q.Get("term")
	if term == "" {
		writeProxyJSON(w, http.StatusBadRequest, proxyError{Error: "Missing term parameter"})
		return
	}

	req := Request{
		Term:    term,
		Media:   q.Get("media"),
		Country: q.Get("country"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		req.Limit = limit
	}

	raws, err := h.client.SearchRaw(r.Context(), req)
	if err != nil {
		logger.Error("[Proxy] 上游请求失败",
			logger.String("term", term),
			logger.ErrorField(err))
		writeProxyJSON(w, http.StatusInternalServerError, proxyError{Error: "Failed to fetch data from iTunes API"})
		return
	}

	filtered := FilterElectronic(raws)
	writeProxyJSON(w, http.StatusOK, proxyResponse{
		ResultCount: len(filtered),
		Results:     filtered,
	})
}

func writeProxyJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("[Proxy] 写入响应失败", logger.ErrorField(err))
	}
}
