package catalog

import "beatflow/model"

// Page 目录的一页
type Page struct {
	Number    int           `json:"page"`
	PageCount int           `json:"pageCount"`
	Total     int           `json:"total"`
	Tracks    []model.Track `json:"tracks"`
}

// PageCount returns ceil(total / PageSize), never less than 1.
func PageCount(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + PageSize - 1) / PageSize
}

// Page 返回当前目录的第 n 页（从 1 开始）
// 页码超出 [1, PageCount] 时返回空页，而不是报错
func (a *Aggregator) Page(n int) Page {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return paginate(a.tracks, n)
}

func paginate(tracks []model.Track, n int) Page {
	p := Page{
		Number:    n,
		PageCount: PageCount(len(tracks)),
		Total:     len(tracks),
		Tracks:    []model.Track{},
	}
	if n < 1 || n > p.PageCount {
		return p
	}

	start := (n - 1) * PageSize
	end := min(start+PageSize, len(tracks))
	if start < end {
		p.Tracks = make([]model.Track, end-start)
		copy(p.Tracks, tracks[start:end])
	}
	return p
}
