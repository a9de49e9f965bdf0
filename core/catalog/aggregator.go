package catalog

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"beatflow/config"
	"beatflow/core/gateway"
	"beatflow/logger"
	"beatflow/model"
	"beatflow/storage"

	"golang.org/x/sync/errgroup"
)

const (
	MaxCatalogSize = 500
	PageSize       = 30
	FeaturedSize   = 10
	PerTermLimit   = 1000

	// SupplementThreshold 首轮去重后不足该数量时查询补充词条
	SupplementThreshold = 500
)

// Searcher 曲目数据源，plugin.Manager 和 gateway 客户端都满足该接口
type Searcher interface {
	Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error)
}

// SnapshotSink receives every applied catalog. storage.SnapshotStore satisfies it.
type SnapshotSink interface {
	Save(ctx context.Context, snap storage.Snapshot) (string, error)
}

// Failure reasons reported per term.
const (
	ReasonTimeout  = "timeout"
	ReasonCanceled = "canceled"
	ReasonStatus   = "upstream_status"
	ReasonError    = "error"
)

// TermFailure 单个词条的查询失败信息，仅用于日志与观测
type TermFailure struct {
	Term   string `json:"term"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// LoadReport 一次目录加载的结果摘要
type LoadReport struct {
	Generation   uint64        `json:"generation"`
	Term         string        `json:"term,omitempty"`
	Queried      []string      `json:"queried"`
	Fetched      int           `json:"fetched"`
	Total        int           `json:"total"`
	Supplemented bool          `json:"supplemented"`
	Applied      bool          `json:"applied"`
	Failures     []TermFailure `json:"failures,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Option 聚合器选项
type Option func(*Aggregator)

// WithTimeout sets the per-term fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithSnapshotSink 每次成功应用目录后保存快照
func WithSnapshotSink(sink SnapshotSink) Option {
	return func(a *Aggregator) {
		a.sink = sink
	}
}

// WithShuffle replaces the shuffle used for the featured sample.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(a *Aggregator) {
		a.shuffle = shuffle
	}
}

// Aggregator 目录聚合器：并发查询多个词条，合并去重、截断并分页
// 目录快照整体替换，不做增量修改
type Aggregator struct {
	searcher Searcher
	timeout  time.Duration
	sink     SnapshotSink
	shuffle  func(n int, swap func(i, j int))

	// issued 是最近一次发起加载的代号，只有代号仍为最新的结果才会被应用
	issued atomic.Uint64

	mu      sync.RWMutex
	terms   config.Terms
	tracks  []model.Track
	applied uint64
	term    string // 生成当前目录的搜索词，精选词条为空
}

// NewAggregator 创建目录聚合器
func NewAggregator(searcher Searcher, terms config.Terms, opts ...Option) *Aggregator {
	a := &Aggregator{
		searcher: searcher,
		timeout:  gateway.DefaultTimeout,
		shuffle:  rand.Shuffle,
		terms:    terms,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetTerms 替换词条列表（热加载时调用），不影响当前目录
func (a *Aggregator) SetTerms(t config.Terms) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.terms = t
}

// Terms 返回当前词条列表
func (a *Aggregator) Terms() config.Terms {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.terms
}

// Generation returns the generation of the catalog currently held.
func (a *Aggregator) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.applied
}

// CurrentTerm returns the search term that produced the current catalog.
// It is empty when the catalog came from the curated term lists.
func (a *Aggregator) CurrentTerm() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.term
}

// Curated reports whether the catalog holds a curated load, i.e. it is
// non-empty and was not produced by a search.
func (a *Aggregator) Curated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tracks) > 0 && a.term == ""
}

// Len 当前目录中的曲目数
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tracks)
}

// Tracks returns a copy of the current catalog.
func (a *Aggregator) Tracks() []model.Track {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Track, len(a.tracks))
	copy(out, a.tracks)
	return out
}

// Load 加载目录
// term 非空时只查询该词条；为空时并发查询全部精选词条，结果不足阈值时再查询补充词条
// 单个词条失败只会让它贡献零条结果，不会中断整次加载
func (a *Aggregator) Load(ctx context.Context, term string) LoadReport {
	return a.load(ctx, strings.TrimSpace(term), true)
}

// LoadPending consumes the one-shot pending search term, if any, and loads
// the catalog for it. Without a pending term the curated lists are used.
func (a *Aggregator) LoadPending(ctx context.Context, pending *PendingSearch) LoadReport {
	term, _ := pending.Take(ctx)
	return a.Load(ctx, term)
}

// Featured 返回精选曲目的随机样本
// 目录为空或来自搜索时先用精选词条填充目录，之后的调用复用已有快照
func (a *Aggregator) Featured(ctx context.Context) ([]model.Track, *LoadReport) {
	var report *LoadReport
	if !a.Curated() {
		r := a.load(ctx, "", false)
		report = &r
	}

	pool := a.Tracks()
	a.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > FeaturedSize {
		pool = pool[:FeaturedSize]
	}
	return pool, report
}

func (a *Aggregator) load(ctx context.Context, term string, supplement bool) LoadReport {
	start := time.Now()
	gen := a.issued.Add(1)
	terms := a.Terms()

	report := LoadReport{Generation: gen, Term: term}

	queried := terms.Featured
	if term != "" {
		queried = []string{term}
	}

	tracks, fetched, failures := a.fetchRound(ctx, queried)
	report.Queried = append(report.Queried, queried...)
	report.Fetched += fetched
	report.Failures = append(report.Failures, failures...)

	merged := Merge(nil, tracks, MaxCatalogSize)

	if term == "" && supplement && len(merged) < SupplementThreshold && len(terms.Supplementary) > 0 {
		more, fetched, failures := a.fetchRound(ctx, terms.Supplementary)
		report.Queried = append(report.Queried, terms.Supplementary...)
		report.Fetched += fetched
		report.Failures = append(report.Failures, failures...)
		report.Supplemented = true
		merged = Merge(merged, more, MaxCatalogSize)
	}

	report.Total = len(merged)
	report.Applied = a.apply(gen, term, merged)
	report.Elapsed = time.Since(start)

	for _, f := range report.Failures {
		logger.Warn("[Catalog] 词条查询失败",
			logger.String("term", f.Term),
			logger.String("reason", f.Reason),
			logger.ErrorField(f.Err))
	}
	logger.Info("[Catalog] 目录加载完成",
		logger.Uint64("generation", gen),
		logger.String("term", term),
		logger.Int("fetched", report.Fetched),
		logger.Int("total", report.Total),
		logger.Int("failures", len(report.Failures)),
		logger.Bool("supplemented", report.Supplemented),
		logger.Bool("applied", report.Applied),
		logger.Duration("elapsed", report.Elapsed))

	if report.Applied && a.sink != nil && len(merged) > 0 {
		a.saveSnapshot(ctx, storage.Snapshot{
			Generation: gen,
			Term:       term,
			CreatedAt:  time.Now(),
			Tracks:     merged,
		})
	}

	return report
}

// apply replaces the catalog wholesale when gen is still the newest load issued.
func (a *Aggregator) apply(gen uint64, term string, tracks []model.Track) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.issued.Load() {
		logger.Debug("[Catalog] 丢弃过期的加载结果",
			logger.Uint64("generation", gen),
			logger.Uint64("latest", a.issued.Load()))
		return false
	}
	a.tracks = tracks
	a.applied = gen
	a.term = term
	return true
}

func (a *Aggregator) saveSnapshot(ctx context.Context, snap storage.Snapshot) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	if _, err := a.sink.Save(sctx, snap); err != nil {
		logger.Warn("[Catalog] 保存目录快照失败", logger.ErrorField(err))
	}
}

// fetchRound 并发查询一组词条并等待全部完成
// 结果按词条顺序拼接，保证合并顺序稳定
func (a *Aggregator) fetchRound(ctx context.Context, terms []string) ([]model.Track, int, []TermFailure) {
	results := make([][]model.Track, len(terms))
	fetched := make([]int, len(terms))
	errs := make([]error, len(terms))

	var g errgroup.Group
	for i, term := range terms {
		i, term := i, term
		g.Go(func() error {
			results[i], fetched[i], errs[i] = a.fetchTerm(ctx, term)
			return nil
		})
	}
	g.Wait()

	var (
		all      []model.Track
		total    int
		failures []TermFailure
	)
	for i, term := range terms {
		total += fetched[i]
		if errs[i] != nil {
			failures = append(failures, TermFailure{Term: term, Reason: classify(errs[i]), Err: errs[i]})
			continue
		}
		all = append(all, results[i]...)
	}
	return all, total, failures
}

func (a *Aggregator) fetchTerm(ctx context.Context, term string) ([]model.Track, int, error) {
	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raws, err := a.searcher.Search(tctx, term, PerTermLimit)
	if err != nil {
		return nil, 0, err
	}
	return Filter(raws), len(raws), nil
}

// Filter 丢弃缺少名称或艺人的记录，并按允许的风格重新过滤
// 数据源可能未经代理过滤，所以这里始终再过滤一次
func Filter(raws []model.RawTrack) []model.Track {
	out := make([]model.Track, 0, len(raws))
	for _, r := range raws {
		if !r.Playable() || !gateway.IsElectronic(r.PrimaryGenreName) {
			continue
		}
		out = append(out, r.ToTrack())
	}
	return out
}

// Merge appends incoming tracks to base, skipping identifiers already seen
// (first occurrence wins) and stopping at limit.
func Merge(base, incoming []model.Track, limit int) []model.Track {
	seen := make(map[string]bool, len(base)+len(incoming))
	out := make([]model.Track, 0, min(len(base)+len(incoming), limit))
	for _, list := range [][]model.Track{base, incoming} {
		for _, t := range list {
			if len(out) >= limit {
				return out
			}
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out
}

func classify(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, gateway.ErrUpstreamStatus):
		return ReasonStatus
	default:
		return ReasonError
	}
}

// Find 在当前目录中按 ID 查找曲目
func (a *Aggregator) Find(id string) (model.Track, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, t := range a.tracks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Track{}, false
}
