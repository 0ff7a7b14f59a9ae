package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

const (
	feedEntriesPerFeed = 10
	feedClientTimeout  = 15 * time.Second
	feedConcurrency    = 4
)

// FeedFetcher 通过 gofeed 抓取 RSS/Atom 订阅源
type FeedFetcher struct {
	Plan    FeedPlan
	Workers int
	Client  *http.Client
}

func NewFeedFetcher(plan FeedPlan) *FeedFetcher {
	return &FeedFetcher{
		Plan:    plan,
		Workers: feedConcurrency,
		Client:  &http.Client{Timeout: feedClientTimeout},
	}
}

func (f *FeedFetcher) Name() string            { return "rss" }
func (f *FeedFetcher) Kind() domain.SourceKind { return domain.KindNews }
func (f *FeedFetcher) Enabled() bool           { return true }

// Fetch 并发抓取各订阅源，但按订阅源顺序拼接结果，保证去重时先到先得
func (f *FeedFetcher) Fetch(ctx context.Context, query string, limit int) Result {
	feeds := f.Plan.Resolve(query)
	if len(feeds) == 0 {
		return finish(f, nil, limit)
	}
	log.Printf("rss: fetching %d feeds (query=%q)", len(feeds), query)

	workers := f.Workers
	if workers <= 0 {
		workers = feedConcurrency
	}

	slots := make([][]Record, len(feeds))
	errs := make([]error, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, feedURL := range feeds {
		i, feedURL := i, feedURL
		g.Go(func() error {
			records, err := f.FetchFeed(gctx, feedURL)
			if err != nil {
				log.Printf("rss: fetch %s: %v", feedURL, err)
				errs[i] = err
				return nil
			}
			slots[i] = records
			return nil
		})
	}
	_ = g.Wait()

	var records []Record
	for _, s := range slots {
		records = append(records, s...)
	}

	if len(records) == 0 {
		if err := errors.Join(errs...); err != nil {
			return failed(f, err)
		}
	}
	return finish(f, records, limit)
}

// FetchFeed 抓取单个订阅源，只取前 10 条；单条解析问题直接跳过
func (f *FeedFetcher) FetchFeed(ctx context.Context, feedURL string) ([]Record, error) {
	parser := gofeed.NewParser()
	parser.UserAgent = "MediaMonBot/1.0"
	if f.Client != nil {
		parser.Client = f.Client
	}

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := feed.Items
	if len(items) > feedEntriesPerFeed {
		items = items[:feedEntriesPerFeed]
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}
		records = append(records, entryFromItem(feedURL, item))
	}
	return records, nil
}

func entryFromItem(feedURL string, item *gofeed.Item) FeedEntry {
	e := FeedEntry{
		FeedURL: feedURL,
		Title:   item.Title,
		Link:    item.Link,
		Summary: item.Description,
	}
	if e.Summary == "" {
		e.Summary = item.Content
	}
	switch {
	case item.PublishedParsed != nil:
		e.Published = item.PublishedParsed
	case item.UpdatedParsed != nil:
		e.Published = item.UpdatedParsed
	}
	if dc := item.DublinCoreExt; dc != nil && len(dc.Publisher) > 0 {
		e.SourceName = strings.TrimSpace(dc.Publisher[0])
	}
	return e
}
