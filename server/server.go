package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beatflow/config"
	"beatflow/core/catalog"
	"beatflow/core/gateway"
	"beatflow/logger"

	"github.com/gorilla/mux"
)

// ProxyPath 与原有无服务器函数相同的代理路径，前端无需修改
const ProxyPath = "/.netlify/functions/itunes-proxy"

// Server 店面 HTTP 服务
type Server struct {
	cfg       *config.Config
	catalog   *catalog.Aggregator
	sessions  *Sessions
	proxy     http.Handler
	snapshots SnapshotSource
}

// New 创建服务
func New(cfg *config.Config, agg *catalog.Aggregator, sessions *Sessions, proxy http.Handler) *Server {
	return &Server{
		cfg:      cfg,
		catalog:  agg,
		sessions: sessions,
		proxy:    proxy,
	}
}

// corsMiddleware 添加 CORS 头，并直接响应预检请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gateway.SetCORSHeaders(w.Header())
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Router 注册全部路由
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// 搜索代理：任何方法都交给代理处理，由它返回 405
	router.Handle(ProxyPath, s.proxy)
	router.Handle("/api/search", s.proxy)

	// 目录
	router.HandleFunc("/api/featured", s.HandleFeatured).Methods(http.MethodGet)
	router.HandleFunc("/api/catalog", s.HandleCatalog).Methods(http.MethodGet)
	router.HandleFunc("/api/catalog/reload", s.HandleReload).Methods(http.MethodPost)
	router.HandleFunc("/api/pending-search", s.HandleSubmitSearch).Methods(http.MethodPost)

	// 购物车
	router.HandleFunc("/api/cart", s.HandleGetCart).Methods(http.MethodGet)
	router.HandleFunc("/api/cart", s.HandleClearCart).Methods(http.MethodDelete)
	router.HandleFunc("/api/cart/badge", s.HandleBadge).Methods(http.MethodGet)
	router.HandleFunc("/api/cart/items", s.HandleAddItem).Methods(http.MethodPost)
	router.HandleFunc("/api/cart/items/{id}", s.HandleRemoveItem).Methods(http.MethodDelete)
	router.HandleFunc("/api/cart/items/{id}/quantity", s.HandleSetQuantity).Methods(http.MethodPut)
	router.HandleFunc("/api/cart/items/{id}/increment", s.HandleIncrement).Methods(http.MethodPost)
	router.HandleFunc("/api/cart/items/{id}/decrement", s.HandleDecrement).Methods(http.MethodPost)

	// 结算
	router.HandleFunc("/api/checkout", s.HandleGetCheckout).Methods(http.MethodGet)
	router.HandleFunc("/api/checkout", s.HandleCheckout).Methods(http.MethodPost)
	router.HandleFunc("/api/checkout/lines/{index}", s.HandleRemoveCheckoutLine).Methods(http.MethodDelete)

	// 目录快照（配置了 MinIO 时可用）
	router.HandleFunc("/api/snapshots", s.HandleListSnapshots).Methods(http.MethodGet)
	router.HandleFunc("/api/snapshots/latest", s.HandleLatestSnapshot).Methods(http.MethodGet)

	router.HandleFunc("/ws/cart", s.HandleCartSocket)
	router.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)

	return router
}

// HandleHealth 存活检查
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"tracks":     s.catalog.Len(),
		"generation": s.catalog.Generation(),
		"sessions":   s.sessions.Len(),
	})
}

// Start initializes the storefront and serves until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	slot, closeSlot, err := OpenSlot(cfg)
	if err != nil {
		return err
	}
	defer closeSlot()

	snapshots, err := OpenSnapshots(cfg)
	if err != nil {
		// 快照是可选功能，连接失败不影响服务
		logger.Warn("[Server] MinIO 不可用，目录快照已禁用", logger.ErrorField(err))
		snapshots = nil
	}

	searcher, err := NewSearcher(cfg, snapshots)
	if err != nil {
		return err
	}
	agg := NewAggregator(cfg, searcher, snapshots)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TermsFile != "" {
		if err := config.WatchTerms(ctx, cfg.TermsFile, agg.SetTerms); err != nil {
			logger.Warn("[Server] 无法监听词条文件", logger.String("path", cfg.TermsFile), logger.ErrorField(err))
		}
	}

	sessions := NewSessions(slot, cfg.SessionIdle, cfg.SlotTTL)
	go sessions.RunJanitor(ctx, time.Minute)

	proxyClient := gateway.NewClient(cfg.ItunesSearchURL, cfg.MarketCountry)
	proxyClient.SetTimeout(cfg.FetchTimeout)

	srv := New(cfg, agg, sessions, gateway.NewProxyHandler(proxyClient))
	if snapshots != nil {
		srv.SetSnapshots(snapshots)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] 服务启动",
			logger.String("addr", httpServer.Addr),
			logger.String("slot_backend", cfg.SlotBackend),
			logger.Bool("snapshots", snapshots != nil))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("[Server] 正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("[Server] 服务已停止")
	return nil
}
