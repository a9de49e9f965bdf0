package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"beatflow/logger"
	"beatflow/model"
)

// ErrUpstreamStatus 上游返回非 2xx 状态码
var ErrUpstreamStatus = errors.New("upstream returned non-success status")

// SearchRaw 调用 iTunes Search API，返回未经解析的结果记录
func (c *Client) SearchRaw(ctx context.Context, req Request) ([]json.RawMessage, error) {
	req = req.withDefaults(c.country)

	params := url.Values{}
	params.Set("term", req.Term)
	params.Set("media", req.Media)
	params.Set("limit", strconv.Itoa(req.Limit))
	params.Set("country", req.Country)
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", req.Term, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	var result model.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("upstream error: %s", result.Error)
	}

	return result.Results, nil
}

// Search 查询一个词条并解析为 RawTrack，无法解析的记录直接跳过
func (c *Client) Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error) {
	raws, err := c.SearchRaw(ctx, Request{Term: term, Limit: limit})
	if err != nil {
		return nil, err
	}
	tracks := DecodeTracks(raws)

	logger.Debug("[Gateway] 搜索完成",
		logger.String("term", term),
		logger.Int("raw", len(raws)),
		logger.Int("decoded", len(tracks)))

	return tracks, nil
}

// DecodeTracks decodes each record on its own; a malformed record is dropped
// without failing its neighbours.
func DecodeTracks(raws []json.RawMessage) []model.RawTrack {
	tracks := make([]model.RawTrack, 0, len(raws))
	for _, raw := range raws {
		var rt model.RawTrack
		if err := json.Unmarshal(raw, &rt); err != nil {
			continue
		}
		tracks = append(tracks, rt)
	}
	return tracks
}
