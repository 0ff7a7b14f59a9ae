package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/LJTian/MediaMon/internal/collector"
	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/LJTian/MediaMon/internal/processor"
	"github.com/LJTian/MediaMon/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout = 20 * time.Second
	DefaultWorkers = 4

	// 缓存优先：最多读 30 条，至少 10 条才直接使用缓存
	cacheReadLimit = 30
	cacheThreshold = 10

	OriginCache = "cache"
	OriginFresh = "fresh"
)

// DefaultCaps 每类来源单次采集的条数上限；订阅源不设总上限，只受每个 feed 前 10 条限制
var DefaultCaps = map[domain.SourceKind]int{
	domain.KindNews:      -1,
	domain.KindTwitter:   10,
	domain.KindFacebook:  5,
	domain.KindInstagram: 5,
}

// MergeCaps 复制 DefaultCaps 后叠加 override，返回的 map 与 DefaultCaps 互不影响
func MergeCaps(override map[domain.SourceKind]int) map[domain.SourceKind]int {
	caps := make(map[domain.SourceKind]int, len(DefaultCaps)+len(override))
	for k, v := range DefaultCaps {
		caps[k] = v
	}
	for k, v := range override {
		caps[k] = v
	}
	return caps
}

var errFetchTimeout = errors.New("fetch timed out")

// Report 单个来源在一轮采集中的结果，用于日志与 collect 命令输出
type Report struct {
	Source  string            `json:"source"`
	Kind    domain.SourceKind `json:"kind"`
	Status  collector.Status  `json:"status"`
	Fetched int               `json:"fetched"`
	Kept    int               `json:"kept"`
	Error   string            `json:"error,omitempty"`
	Elapsed time.Duration     `json:"elapsed"`
}

// Pass 一轮采集的产出
type Pass struct {
	Articles []domain.Article
	Reports  []Report
}

type Aggregator struct {
	fetchers   []collector.Fetcher
	normalizer *processor.Normalizer
	store      *storage.ArticleStore

	Timeout time.Duration
	Workers int
	Caps    map[domain.SourceKind]int
}

func New(fetchers []collector.Fetcher, n *processor.Normalizer, store *storage.ArticleStore) *Aggregator {
	return &Aggregator{
		fetchers:   fetchers,
		normalizer: n,
		store:      store,
		Timeout:    DefaultTimeout,
		Workers:    DefaultWorkers,
		Caps:       MergeCaps(nil),
	}
}

// Fetchers 返回已注册的采集器，/sources 用它报告启用状态
func (a *Aggregator) Fetchers() []collector.Fetcher {
	return a.fetchers
}

// Aggregate 永远不返回错误，任何来源失败只会让结果变少
func (a *Aggregator) Aggregate(ctx context.Context, query string) []domain.Article {
	return a.Run(ctx, query).Articles
}

func (a *Aggregator) Run(ctx context.Context, query string) Pass {
	if query != "" {
		if n, err := a.store.InvalidateQuery(ctx, query); err != nil {
			log.Printf("aggregator: invalidate %q failed: %v", query, err)
		} else if n > 0 {
			log.Printf("aggregator: invalidated %d articles for %q", n, query)
		}
	}

	results := a.fetchAll(ctx, query)

	// 按来源类别的固定顺序归一化，同类别内按注册顺序
	order := make([]int, 0, len(results))
	for _, kind := range domain.Kinds {
		for i, f := range a.fetchers {
			if f.Kind() == kind {
				order = append(order, i)
			}
		}
	}
	for i, f := range a.fetchers {
		if !knownKind(f.Kind()) {
			order = append(order, i)
		}
	}

	seen := make(map[string]struct{})
	var pass Pass
	reports := make([]Report, len(results))
	for _, i := range order {
		res := results[i]
		articles := a.normalizer.Process(res.result.Records, query, seen)
		pass.Articles = append(pass.Articles, articles...)

		r := Report{
			Source:  res.result.Source,
			Kind:    res.result.Kind,
			Status:  res.result.Status,
			Fetched: len(res.result.Records),
			Kept:    len(articles),
			Elapsed: res.elapsed,
		}
		if res.result.Err != nil {
			r.Error = res.result.Err.Error()
		}
		reports[i] = r
	}
	pass.Reports = reports

	for _, art := range pass.Articles {
		if err := a.store.Save(ctx, art); err != nil {
			log.Printf("aggregator: save %s failed: %v", art.ID, err)
		}
	}

	SortByPublished(pass.Articles)
	log.Printf("aggregator: query=%q articles=%d", query, len(pass.Articles))
	return pass
}

// Serve 服务层使用的缓存优先入口，返回文章和来源标记 cache/fresh。
// 缓存里可能积累多轮采集的同标题文章，去重后不足 cacheThreshold 条时重新采集
func (a *Aggregator) Serve(ctx context.Context, query string) ([]domain.Article, string) {
	cached, err := a.store.ListByQuery(ctx, query, cacheReadLimit)
	if err != nil {
		log.Printf("aggregator: read cache for %q failed: %v", query, err)
	}
	cached = processor.DedupTitles(cached)
	if len(cached) >= cacheThreshold {
		SortByPublished(cached)
		return cached, OriginCache
	}
	return a.Aggregate(ctx, query), OriginFresh
}

// SortByPublished 按发布时间倒序，时间相同保持原顺序
func SortByPublished(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Published.After(articles[j].Published)
	})
}

type fetchOutcome struct {
	result  collector.Result
	elapsed time.Duration
}

// fetchAll 在有界的 errgroup 中并发执行所有采集器，结果按注册顺序写入各自槽位
func (a *Aggregator) fetchAll(ctx context.Context, query string) []fetchOutcome {
	out := make([]fetchOutcome, len(a.fetchers))

	workers := a.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, f := range a.fetchers {
		i, f := i, f
		g.Go(func() error {
			start := time.Now()
			res := a.fetchOne(ctx, f, query)
			out[i] = fetchOutcome{result: res, elapsed: time.Since(start)}
			logResult(res)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// fetchOne 给单个采集器加超时；不理会 ctx 的采集器到点后被放弃，其结果丢弃
func (a *Aggregator) fetchOne(ctx context.Context, f collector.Fetcher, query string) collector.Result {
	base := collector.Result{Source: f.Name(), Kind: f.Kind()}
	if !f.Enabled() {
		base.Status = collector.StatusDisabled
		return base
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limit := a.capFor(f.Kind())
	ch := make(chan collector.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				res := base
				res.Status = collector.StatusFailed
				res.Err = fmt.Errorf("panic: %v", r)
				ch <- res
			}
		}()
		ch <- f.Fetch(ctx, query, limit)
	}()

	select {
	case res := <-ch:
		if limit >= 0 && len(res.Records) > limit {
			res.Records = res.Records[:limit]
		}
		return res
	case <-ctx.Done():
		res := base
		res.Status = collector.StatusFailed
		res.Err = fmt.Errorf("%w after %s", errFetchTimeout, timeout)
		return res
	}
}

func (a *Aggregator) capFor(kind domain.SourceKind) int {
	if c, ok := a.Caps[kind]; ok {
		return c
	}
	if c, ok := DefaultCaps[kind]; ok {
		return c
	}
	return -1
}

func knownKind(kind domain.SourceKind) bool {
	for _, k := range domain.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func logResult(res collector.Result) {
	switch res.Status {
	case collector.StatusDisabled:
		log.Printf("%s: disabled, credentials not configured", res.Source)
	case collector.StatusFailed:
		log.Printf("%s: fetch failed: %v", res.Source, res.Err)
	case collector.StatusEmpty:
		log.Printf("%s: got 0 items", res.Source)
	default:
		log.Printf("%s: fetched %d items", res.Source, len(res.Records))
	}
}
