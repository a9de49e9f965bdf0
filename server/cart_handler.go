package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"beatflow/core/cart"
	"beatflow/logger"
	"beatflow/model"

	"github.com/gorilla/mux"
)

// addItemRequest 加入购物车请求，字段与上游记录同名
// 只给 trackId 时从当前目录补全其余字段
type addItemRequest struct {
	TrackID    model.FlexibleID `json:"trackId"`
	TrackName  string           `json:"trackName"`
	ArtistName string           `json:"artistName"`
	Artwork    string           `json:"artworkUrl100"`
	Image      string           `json:"image"`
	TrackPrice *model.Price     `json:"trackPrice"`
}

type quantityRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

type cartResponse struct {
	Badge cart.BadgeView `json:"badge"`
	Panel cart.PanelView `json:"panel"`
}

func newCartResponse(st cart.State) cartResponse {
	return cartResponse{Badge: st.Badge(), Panel: st.Panel()}
}

// HandleGetCart 返回购物车面板
func (s *Server) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	writeJSON(w, http.StatusOK, sess.Cart.State().Panel())
}

// HandleBadge 返回徽标数量
func (s *Server) HandleBadge(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	writeJSON(w, http.StatusOK, sess.Cart.State().Badge())
}

// HandleAddItem 加入购物车，已存在则数量加 1
func (s *Server) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := req.TrackID.String()
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trackId")
		return
	}

	summary := model.TrackSummary{
		ID:     id,
		Name:   req.TrackName,
		Artist: req.ArtistName,
		Image:  req.Image,
	}
	if summary.Image == "" {
		summary.Image = req.Artwork
	}
	if req.TrackPrice != nil {
		summary.Price = float64(*req.TrackPrice)
	}

	if req.TrackName == "" {
		if t, ok := s.catalog.Find(id); ok {
			summary = t.Summary()
		}
	}

	sess.Cart.Add(r.Context(), summary)
	writeJSON(w, http.StatusOK, newCartResponse(sess.Cart.State()))
}

// HandleRemoveItem 按 ID 删除一行
func (s *Server) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	sess.Cart.Remove(r.Context(), mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, newCartResponse(sess.Cart.State()))
}

// HandleSetQuantity 设置数量；无法解析的数量按 1 处理
func (s *Server) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("[Server] 数量请求无法解析，按 1 处理", logger.ErrorField(err))
	}

	sess.Cart.SetQuantity(r.Context(), mux.Vars(r)["id"], rawQuantity(req.Quantity))
	writeJSON(w, http.StatusOK, newCartResponse(sess.Cart.State()))
}

// rawQuantity turns the JSON quantity into the text a form input would hold:
// strings are unquoted, numbers keep their literal, anything else is empty.
func rawQuantity(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}

// HandleIncrement 数量加 1
func (s *Server) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	sess.Cart.Increment(r.Context(), mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, newCartResponse(sess.Cart.State()))
}

// HandleDecrement 数量减 1，最小为 1
func (s *Server) HandleDecrement(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	sess.Cart.Decrement(r.Context(), mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, newCartResponse(sess.Cart.State()))
}

// HandleClearCart 清空购物车
func (s *Server) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	sess.Cart.Clear(r.Context())
	writeJSON(w, http.StatusOK, newCartResponse(sess.Cart.State()))
}

// HandleGetCheckout 结算页摘要
func (s *Server) HandleGetCheckout(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	writeJSON(w, http.StatusOK, sess.Cart.State().Checkout())
}

// HandleRemoveCheckoutLine removes by position; a bad index leaves the cart as is.
func (s *Server) HandleRemoveCheckoutLine(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	if index, err := strconv.Atoi(mux.Vars(r)["index"]); err == nil {
		sess.Cart.RemoveAt(r.Context(), index)
	}
	writeJSON(w, http.StatusOK, sess.Cart.State().Checkout())
}

type checkoutResponse struct {
	Message string `json:"message"`
	Items   int    `json:"items"`
	Total   string `json:"total"`
}

// HandleCheckout 完成购买：不处理支付，只清空购物车
func (s *Server) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()

	st := sess.Cart.Checkout(r.Context())
	if st.ItemCount == 0 {
		writeError(w, http.StatusBadRequest, "Your cart is empty")
		return
	}

	logger.Info("[Server] 订单完成",
		logger.String("session", sess.ID),
		logger.Int("items", st.ItemCount),
		logger.String("total", st.Total.StringFixed(2)))

	writeJSON(w, http.StatusOK, checkoutResponse{
		Message: "Thank you for your purchase!",
		Items:   st.ItemCount,
		Total:   st.Total.StringFixed(2),
	})
}
