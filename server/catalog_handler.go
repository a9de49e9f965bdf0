package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"beatflow/core/catalog"
	"beatflow/logger"
	"beatflow/model"
)

// CatalogUnavailable is the one user-facing failure message: a whole load
// produced nothing to show.
const CatalogUnavailable = "Could not load tracks. Please try again later."

// TrackCard 目录卡片
type TrackCard struct {
	model.Track
	Artwork    string `json:"artwork"`
	PriceLabel string `json:"priceLabel"`
}

func toCards(tracks []model.Track) []TrackCard {
	cards := make([]TrackCard, 0, len(tracks))
	for _, t := range tracks {
		cards = append(cards, TrackCard{
			Track:      t,
			Artwork:    t.CardArtwork(),
			PriceLabel: t.PriceLabel(),
		})
	}
	return cards
}

type featuredResponse struct {
	Tracks []TrackCard `json:"tracks"`
	Notice string      `json:"notice,omitempty"`
}

type catalogResponse struct {
	Page      int                 `json:"page"`
	PageCount int                 `json:"pageCount"`
	Total     int                 `json:"total"`
	Term      string              `json:"term,omitempty"`
	Tracks    []TrackCard         `json:"tracks"`
	Notice    string              `json:"notice,omitempty"`
	Report    *catalog.LoadReport `json:"report,omitempty"`
}

// HandleFeatured 返回精选曲目
func (s *Server) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	tracks, _ := s.catalog.Featured(r.Context())

	resp := featuredResponse{Tracks: toCards(tracks)}
	if len(tracks) == 0 {
		resp.Notice = CatalogUnavailable
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCatalog 返回目录的一页
// 待执行搜索词每次都会被取出；显式 term 优先于它
// 没有搜索词时，目录为空或来自某次搜索则重新加载精选词条
func (s *Server) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()
	q := r.URL.Query()

	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		page = n
	}

	term := strings.TrimSpace(q.Get("term"))
	if pending, ok := sess.Pending.Take(r.Context()); ok && term == "" {
		term = pending
	}

	var report *catalog.LoadReport
	switch {
	case term != "":
		rep := s.catalog.Load(r.Context(), term)
		report = &rep
	case !s.catalog.Curated():
		rep := s.catalog.Load(r.Context(), "")
		report = &rep
	}

	p := s.catalog.Page(page)
	resp := catalogResponse{
		Page:      p.Number,
		PageCount: p.PageCount,
		Total:     p.Total,
		Term:      term,
		Tracks:    toCards(p.Tracks),
		Report:    report,
	}
	if p.Total == 0 {
		resp.Notice = CatalogUnavailable
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleReload 强制重新加载目录
func (s *Server) HandleReload(w http.ResponseWriter, r *http.Request) {
	report := s.catalog.Load(r.Context(), r.URL.Query().Get("term"))
	writeJSON(w, http.StatusOK, report)
}

type searchRequest struct {
	Term string `json:"term"`
}

// HandleSubmitSearch 保存待执行的搜索词，下一次目录请求会使用并清除它
func (s *Server) HandleSubmitSearch(w http.ResponseWriter, r *http.Request) {
	sess, release := s.sessions.FromRequest(w, r)
	defer release()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	term, err := sess.Pending.Submit(r.Context(), req.Term)
	switch {
	case errors.Is(err, catalog.ErrEmptySearch):
		writeError(w, http.StatusBadRequest, "Please enter a search term")
		return
	case errors.Is(err, catalog.ErrSearchTooShort):
		writeError(w, http.StatusBadRequest, "Please enter at least 2 characters")
		return
	case err != nil:
		// the slot is down; hand the term back so the client loads it explicitly
		logger.Warn("[Server] 保存搜索词失败", logger.String("session", sess.ID), logger.ErrorField(err))
		trimmed := strings.TrimSpace(req.Term)
		writeJSON(w, http.StatusOK, map[string]string{
			"term":     trimmed,
			"redirect": "/catalog?term=" + url.QueryEscape(trimmed),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"term":     term,
		"redirect": "/catalog",
	})
}
