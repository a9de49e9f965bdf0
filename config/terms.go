package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"beatflow/logger"

	"github.com/fsnotify/fsnotify"
)

// Terms 目录聚合使用的精选词条列表
type Terms struct {
	Featured      []string `json:"featured"`      // 首轮查询（也用于精选）
	Supplementary []string `json:"supplementary"` // 结果不足时的补充查询
}

// DefaultTerms 返回内置的电子音乐风格词条
func DefaultTerms() Terms {
	return Terms{
		Featured:      []string{"trance", "deep house", "progressive house", "progressive trance"},
		Supplementary: []string{"techno", "ambient", "electronic", "house"},
	}
}

// LoadTerms reads a JSON terms file. Missing or empty lists fall back to the defaults.
func LoadTerms(path string) (Terms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultTerms(), fmt.Errorf("failed to read terms file: %w", err)
	}

	var t Terms
	if err := json.Unmarshal(data, &t); err != nil {
		return DefaultTerms(), fmt.Errorf("failed to parse terms file: %w", err)
	}

	def := DefaultTerms()
	t.Featured = cleanTerms(t.Featured)
	t.Supplementary = cleanTerms(t.Supplementary)
	if len(t.Featured) == 0 {
		t.Featured = def.Featured
	}
	if len(t.Supplementary) == 0 {
		t.Supplementary = def.Supplementary
	}
	return t, nil
}

func cleanTerms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, term := range in {
		term = strings.TrimSpace(term)
		key := strings.ToLower(term)
		if term == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, term)
	}
	return out
}

// WatchTerms 监听词条文件变化并回调 onChange，直到 ctx 结束
// 监听的是所在目录，编辑器通过重命名替换文件时也能收到事件
func WatchTerms(ctx context.Context, path string, onChange func(Terms)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create terms watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch terms dir: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				terms, err := LoadTerms(path)
				if err != nil {
					logger.Warn("[Terms] 重新加载词条失败", logger.String("path", path), logger.ErrorField(err))
					continue
				}
				logger.Info("[Terms] 词条已重新加载",
					logger.Int("featured", len(terms.Featured)),
					logger.Int("supplementary", len(terms.Supplementary)))
				onChange(terms)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("[Terms] watcher error", logger.ErrorField(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
