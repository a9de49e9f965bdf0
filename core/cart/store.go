package cart

import (
	"context"
	"encoding/json"
	"sync"

	"beatflow/logger"
	"beatflow/model"
	"beatflow/storage"

	"github.com/shopspring/decimal"
)

// SlotKey 购物车槽位的默认键
const SlotKey = "beatflow_cart_v1"

// Presenter 购物车视图（徽标、购物车面板、结算页）
// Render 在每次变更持久化之后同步调用，实现不能回调 Store
type Presenter interface {
	Render(state State)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(State)

func (f PresenterFunc) Render(s State) { f(s) }

// State 某一时刻购物车的只读快照
type State struct {
	Lines     []model.CartLine
	ItemCount int
	Total     decimal.Decimal
}

// Store 购物车：内存中的有序行列表是唯一的数据来源
// 每次变更后写入槽位再通知视图；写入失败只记录日志
type Store struct {
	mu         sync.Mutex
	slot       storage.Slot
	key        string
	lines      []model.CartLine
	presenters map[int]Presenter
	nextID     int
	unsaved    bool // 最近一次写入槽位失败
}

// Open 从槽位读取已保存的购物车
// 槽位不存在、不可读或内容损坏时得到空购物车，不返回错误
func Open(ctx context.Context, slot storage.Slot, key string) *Store {
	if key == "" {
		key = SlotKey
	}
	s := &Store{
		slot:       slot,
		key:        key,
		presenters: make(map[int]Presenter),
	}
	s.lines = s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) []model.CartLine {
	data, ok, err := s.slot.Get(ctx, s.key)
	if err != nil {
		logger.Warn("[CartStore] 读取购物车失败，使用空购物车", logger.String("key", s.key), logger.ErrorField(err))
		return []model.CartLine{}
	}
	if !ok || data == "" {
		return []model.CartLine{}
	}

	var saved []model.CartLine
	if err := json.Unmarshal([]byte(data), &saved); err != nil {
		logger.Warn("[CartStore] 购物车数据损坏，使用空购物车", logger.String("key", s.key), logger.ErrorField(err))
		return []model.CartLine{}
	}
	return normalize(saved)
}

// normalize enforces one line per identifier and qty >= 1 on data read
// back from storage. Duplicate lines fold into the first one.
func normalize(saved []model.CartLine) []model.CartLine {
	lines := make([]model.CartLine, 0, len(saved))
	index := make(map[string]int, len(saved))
	for _, l := range saved {
		if l.ID == "" {
			l.ID = l.Track.TrackID.String()
		}
		if l.ID == "" {
			continue
		}
		if l.Qty < 1 {
			l.Qty = 1
		}
		if i, ok := index[l.ID]; ok {
			lines[i].Qty += l.Qty
			continue
		}
		index[l.ID] = len(lines)
		lines = append(lines, l)
	}
	return lines
}

// Attach 注册视图并立即渲染当前状态，返回取消注册的函数
func (s *Store) Attach(p Presenter) (detach func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.presenters[id] = p
	p.Render(s.stateLocked())

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.presenters, id)
	}
}

// Add 加入购物车：已存在则数量加 1，否则追加数量为 1 的新行
// 没有 ID 的曲目无法在恢复时识别，直接忽略
func (s *Store) Add(ctx context.Context, summary model.TrackSummary) {
	s.mutate(ctx, "add", func() bool {
		if summary.ID == "" {
			return false
		}
		if i := s.indexLocked(summary.ID); i >= 0 {
			s.lines[i].Qty++
			return true
		}
		s.lines = append(s.lines, model.NewCartLine(summary))
		return true
	})
}

// Remove 按 ID 删除一行，不存在时不做修改
func (s *Store) Remove(ctx context.Context, id string) {
	s.mutate(ctx, "remove", func() bool {
		if i := s.indexLocked(id); i >= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		}
		return true
	})
}

// SetQuantity parses requested like a form input and clamps it to at least 1.
// Unknown identifiers are ignored.
func (s *Store) SetQuantity(ctx context.Context, id string, requested string) {
	s.mutate(ctx, "set_quantity", func() bool {
		i := s.indexLocked(id)
		if i < 0 {
			return false
		}
		s.lines[i].Qty = ParseQuantity(requested)
		return true
	})
}

// Increment 数量加 1
func (s *Store) Increment(ctx context.Context, id string) {
	s.mutate(ctx, "increment", func() bool {
		if i := s.indexLocked(id); i >= 0 {
			s.lines[i].Qty++
		}
		return true
	})
}

// Decrement 数量减 1；数量为 1 时不变，删除行只能通过 Remove
func (s *Store) Decrement(ctx context.Context, id string) {
	s.mutate(ctx, "decrement", func() bool {
		if i := s.indexLocked(id); i >= 0 && s.lines[i].Qty > 1 {
			s.lines[i].Qty--
		}
		return true
	})
}

// Clear 清空购物车
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, "clear", func() bool {
		s.lines = []model.CartLine{}
		return true
	})
}

// RemoveAt removes the line at a position of the ordered cart.
// An out-of-range index is a no-op.
func (s *Store) RemoveAt(ctx context.Context, index int) {
	s.mutate(ctx, "remove_at", func() bool {
		if index < 0 || index >= len(s.lines) {
			return false
		}
		s.lines = append(s.lines[:index], s.lines[index+1:]...)
		return true
	})
}

// Checkout empties the cart and returns what it held, in one step.
// An empty cart is left untouched.
func (s *Store) Checkout(ctx context.Context) State {
	var bought State
	s.mutate(ctx, "checkout", func() bool {
		bought = s.stateLocked()
		if len(s.lines) == 0 {
			return false
		}
		s.lines = []model.CartLine{}
		return true
	})
	return bought
}

// PersistFailed reports whether the last write to the slot failed, i.e. the
// in-memory cart is ahead of the stored one.
func (s *Store) PersistFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved
}

// ItemCount 所有行数量之和
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.lines)
}

// TotalPrice 所有行 单价×数量 之和，非有限正数的单价按 0 计
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.lines)
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

// State 返回当前购物车快照
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) mutate(ctx context.Context, op string, fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn() {
		return
	}
	s.persistLocked(ctx, op)

	state := s.stateLocked()
	for _, p := range s.presenters {
		p.Render(state)
	}
}

func (s *Store) persistLocked(ctx context.Context, op string) {
	data, err := json.Marshal(s.lines)
	if err != nil {
		logger.Error("[CartStore] 序列化购物车失败", logger.String("op", op), logger.ErrorField(err))
		return
	}
	if err := s.slot.Set(ctx, s.key, string(data)); err != nil {
		s.unsaved = true
		logger.Warn("[CartStore] 保存购物车失败，继续使用内存中的购物车",
			logger.String("op", op),
			logger.String("key", s.key),
			logger.ErrorField(err))
		return
	}
	s.unsaved = false
}

func (s *Store) indexLocked(id string) int {
	for i, l := range s.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) stateLocked() State {
	return State{
		Lines:     copyLines(s.lines),
		ItemCount: itemCount(s.lines),
		Total:     totalPrice(s.lines),
	}
}

func copyLines(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}

func itemCount(lines []model.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Qty
	}
	return n
}

func totalPrice(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineSubtotal(l))
	}
	return total
}

// LineSubtotal 单行小计
func LineSubtotal(l model.CartLine) decimal.Decimal {
	return decimal.NewFromFloat(l.UnitPrice()).Mul(decimal.NewFromInt(int64(l.Qty)))
}
