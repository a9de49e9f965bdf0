package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"beatflow/core/cart"
	"beatflow/core/catalog"
	"beatflow/logger"
	"beatflow/storage"

	"github.com/google/uuid"
)

// SessionCookie 购物会话的 cookie 名
const SessionCookie = "bf_session"

// Session 一个浏览器会话：自己的购物车、待执行搜索词和视图推送中心
type Session struct {
	ID      string
	Cart    *cart.Store
	Pending *catalog.PendingSearch
	Hub     *CartHub

	lastSeen time.Time
	inflight int // 正在使用该会话的请求数，由 Sessions.mu 保护
}

// Sessions 会话注册表
// 空闲会话只从内存中移除，槽位中的购物车保留，下次访问时重新读取
type Sessions struct {
	mu     sync.Mutex
	slot   storage.Slot
	idle   time.Duration
	maxAge time.Duration
	items  map[string]*Session
	now    func() time.Time
}

// NewSessions 创建会话注册表
func NewSessions(slot storage.Slot, idle, maxAge time.Duration) *Sessions {
	return &Sessions{
		slot:   slot,
		idle:   idle,
		maxAge: maxAge,
		items:  make(map[string]*Session),
		now:    time.Now,
	}
}

// CartKey 会话购物车的槽位键
func CartKey(id string) string {
	return cart.SlotKey + ":" + id
}

// PendingKey 会话待执行搜索词的槽位键
func PendingKey(id string) string {
	return catalog.PendingSearchKey + ":" + id
}

// Get returns the live session for id, opening its cart from the slot when
// it is not in memory.
func (s *Sessions) Get(ctx context.Context, id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, id)
}

func (s *Sessions) getLocked(ctx context.Context, id string) *Session {
	if sess, ok := s.items[id]; ok {
		sess.lastSeen = s.now()
		return sess
	}

	sess := &Session{
		ID:       id,
		Cart:     cart.Open(ctx, s.slot, CartKey(id)),
		Pending:  catalog.NewPendingSearch(s.slot, PendingKey(id)),
		Hub:      NewCartHub(id),
		lastSeen: s.now(),
	}
	sess.Cart.Attach(sess.Hub)
	s.items[id] = sess
	return sess
}

// Acquire returns the session for id and holds it until release is called.
// A held session is never evicted, so the caller cannot end up mutating a
// cart that a later request has already reopened from the slot.
func (s *Sessions) Acquire(ctx context.Context, id string) (*Session, func()) {
	s.mu.Lock()
	sess := s.getLocked(ctx, id)
	sess.inflight++
	s.mu.Unlock()

	var once sync.Once
	return sess, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			sess.inflight--
			sess.lastSeen = s.now()
		})
	}
}

// FromRequest 根据 cookie 取得会话，没有或无效时签发新的会话 ID
// 返回的 release 必须在请求结束时调用
func (s *Sessions) FromRequest(w http.ResponseWriter, r *http.Request) (*Session, func()) {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		if parsed, err := uuid.Parse(c.Value); err == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s.Acquire(r.Context(), id)
}

// Len 内存中的会话数
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep drops sessions idle longer than the idle timeout. Sessions in use by
// a request or an open cart socket are kept, and so are sessions whose cart
// could not be written to the slot: their memory copy is the only one.
func (s *Sessions) Sweep() int {
	if s.idle <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idle)
	removed := 0
	for id, sess := range s.items {
		if sess.lastSeen.After(cutoff) || sess.inflight > 0 || sess.Hub.Clients() > 0 {
			continue
		}
		if sess.Cart.PersistFailed() {
			logger.Warn("[Sessions] 购物车未能保存，暂不清理会话", logger.String("session", id))
			continue
		}
		delete(s.items, id)
		removed++
	}
	return removed
}

// RunJanitor 定期清理空闲会话，直到 ctx 结束
func (s *Sessions) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("[Sessions] 已清理空闲会话", logger.Int("removed", n), logger.Int("remaining", s.Len()))
			}
		case <-ctx.Done():
			return
		}
	}
}
