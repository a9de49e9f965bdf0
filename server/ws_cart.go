package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"beatflow/core/cart"
	"beatflow/logger"

	"github.com/gorilla/websocket"
)

const (
	// WebSocket 配置
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 必须小于 pongWait
	maxMessageSize = 512
	sendBuffer     = 16
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CartMessage 推送给浏览器的购物车视图
type CartMessage struct {
	Type      string         `json:"type"`
	Badge     cart.BadgeView `json:"badge"`
	Panel     cart.PanelView `json:"panel"`
	Timestamp int64          `json:"timestamp"`
}

// NewCartMessage builds the push payload for one cart state.
func NewCartMessage(st cart.State) CartMessage {
	return CartMessage{
		Type:      "cart",
		Badge:     st.Badge(),
		Panel:     st.Panel(),
		Timestamp: time.Now().UnixMilli(),
	}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// CartHub 一个会话的购物车视图推送中心，实现 cart.Presenter
// 同一会话可以打开多个页面，每次变更都会推送到所有页面
type CartHub struct {
	sessionID string

	mu      sync.RWMutex
	clients map[*wsClient]bool
	last    []byte
}

// NewCartHub 创建推送中心
func NewCartHub(sessionID string) *CartHub {
	return &CartHub{
		sessionID: sessionID,
		clients:   make(map[*wsClient]bool),
	}
}

// Render 由购物车在持久化后同步调用；发送不阻塞，缓冲区满时丢弃该客户端的这条消息
func (h *CartHub) Render(st cart.State) {
	data, err := json.Marshal(NewCartMessage(st))
	if err != nil {
		logger.Error("[CartHub] 序列化购物车视图失败", logger.ErrorField(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Clients 当前连接数
func (h *CartHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *CartHub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
}

func (h *CartHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// HandleCartSocket 升级为 WebSocket 并推送该会话的购物车视图
func (s *Server) HandleCartSocket(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[CartHub] websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	sess.Hub.register(client)

	logger.Debug("[CartHub] 客户端已连接",
		logger.String("session", sess.ID),
		logger.Int("clients", sess.Hub.Clients()))

	go client.writePump()
	client.readPump(sess.Hub)
}

// readPump only drains control frames; the socket is push-only.
func (c *wsClient) readPump(hub *CartHub) {
	defer func() {
		hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn("[CartHub] websocket read error", logger.ErrorField(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
