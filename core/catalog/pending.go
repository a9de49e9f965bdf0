package catalog

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"beatflow/logger"
	"beatflow/storage"
)

const (
	// PendingSearchKey 待执行搜索词的槽位键
	PendingSearchKey = "BF_search_query"
	MinSearchLength  = 2
)

var (
	ErrEmptySearch    = errors.New("search term is empty")
	ErrSearchTooShort = errors.New("search term must be at least 2 characters")
)

// PendingSearch 一次性的搜索词槽位
// 搜索入口写入，目录加载时读取并清除
type PendingSearch struct {
	slot storage.Slot
	key  string
}

// NewPendingSearch 创建待执行搜索；key 为空时使用 PendingSearchKey
func NewPendingSearch(slot storage.Slot, key string) *PendingSearch {
	if key == "" {
		key = PendingSearchKey
	}
	return &PendingSearch{slot: slot, key: key}
}

// Submit trims and validates the term, then stores it for the next catalog load.
func (p *PendingSearch) Submit(ctx context.Context, term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", ErrEmptySearch
	}
	if utf8.RuneCountInString(term) < MinSearchLength {
		return "", ErrSearchTooShort
	}
	if err := p.slot.Set(ctx, p.key, term); err != nil {
		return "", err
	}
	return term, nil
}

// Peek 查看待执行的搜索词但不清除
func (p *PendingSearch) Peek(ctx context.Context) (string, bool) {
	term, ok, err := p.slot.Get(ctx, p.key)
	if err != nil {
		logger.Warn("[PendingSearch] 读取搜索词失败", logger.String("key", p.key), logger.ErrorField(err))
		return "", false
	}
	term = strings.TrimSpace(term)
	return term, ok && term != ""
}

// Take 读取并清除待执行的搜索词
// 读取或清除失败只记录日志，调用方按"没有搜索词"处理
func (p *PendingSearch) Take(ctx context.Context) (string, bool) {
	term, ok := p.Peek(ctx)
	if !ok {
		return "", false
	}
	if err := p.slot.Delete(ctx, p.key); err != nil {
		logger.Warn("[PendingSearch] 清除搜索词失败", logger.String("key", p.key), logger.ErrorField(err))
	}
	return term, true
}
