package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// ErrSlotUnavailable is returned by slots whose backing store cannot be reached.
var ErrSlotUnavailable = errors.New("slot storage unavailable")

// Slot 持久化槽位：以字符串为键保存一个字符串值
// 购物车与待执行搜索词各占一个槽位
type Slot interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemorySlot keeps values in process memory. Used by tests and SLOT_BACKEND=memory.
type MemorySlot struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{values: make(map[string]string)}
}

func (m *MemorySlot) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemorySlot) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemorySlot) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)

// FileSlot 每个键对应目录下的一个文件，相当于浏览器的 localStorage
type FileSlot struct {
	dir string
	mu  sync.Mutex
}

// NewFileSlot creates the directory if needed.
func NewFileSlot(dir string) (*FileSlot, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create slot dir %s: %w", dir, err)
	}
	return &FileSlot{dir: dir}, nil
}

func (f *FileSlot) path(key string) string {
	return filepath.Join(f.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (f *FileSlot) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes to a temp file and renames it so readers never see a partial value.
func (f *FileSlot) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

func (f *FileSlot) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}
