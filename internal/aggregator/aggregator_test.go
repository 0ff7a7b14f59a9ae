package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/LJTian/MediaMon/internal/collector"
	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/LJTian/MediaMon/internal/processor"
	"github.com/LJTian/MediaMon/internal/sentiment"
	"github.com/LJTian/MediaMon/internal/storage"
)

type fakeFetcher struct {
	name    string
	kind    domain.SourceKind
	enabled bool
	records []collector.Record
	block   bool // 忽略 ctx 一直阻塞
	panics  bool
	calls   int
}

func (f *fakeFetcher) Name() string            { return f.name }
func (f *fakeFetcher) Kind() domain.SourceKind { return f.kind }
func (f *fakeFetcher) Enabled() bool           { return f.enabled }

func (f *fakeFetcher) Fetch(ctx context.Context, query string, limit int) collector.Result {
	f.calls++
	if f.panics {
		panic("boom")
	}
	if f.block {
		select {}
	}
	recs := f.records
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return collector.Result{Source: f.name, Kind: f.kind, Status: collector.StatusOK, Records: recs}
}

func at(h int) *time.Time {
	t := time.Date(2024, 1, 3, h, 0, 0, 0, time.UTC)
	return &t
}

func newTestAggregator(fetchers ...collector.Fetcher) (*Aggregator, *storage.ArticleStore) {
	store := storage.NewArticleStore(storage.NewMemoryStore())
	n := processor.NewNormalizer(sentiment.NewScorer(sentiment.PolarityFunc(func(string) float64 { return 0 })))
	n.WithClock(func() time.Time { return time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC) })
	a := New(fetchers, n, store)
	a.Timeout = 200 * time.Millisecond
	return a, store
}

func newsFetcher(titles ...string) *fakeFetcher {
	f := &fakeFetcher{name: "rss", kind: domain.KindNews, enabled: true}
	for i, title := range titles {
		f.records = append(f.records, collector.FeedEntry{
			Title:     title,
			Link:      fmt.Sprintf("https://www.kompas.com/%d", i),
			Published: at(i + 1),
		})
	}
	return f
}

func TestAggregateSortsAndDedupsTitles(t *testing.T) {
	news := newsFetcher("A", "B", "A")
	tw := &fakeFetcher{name: "twitter", kind: domain.KindTwitter, enabled: true, records: []collector.Record{
		collector.Tweet{ID: "1", Text: "hello", ScreenName: "x", CreatedAt: at(20)},
		collector.Tweet{ID: "2", Text: "hello", ScreenName: "x", CreatedAt: at(21)},
	}}
	agg, _ := newTestAggregator(tw, news)

	pass := agg.Run(context.Background(), "")
	titles := map[string]bool{}
	for _, a := range pass.Articles {
		if titles[a.Title] {
			t.Fatalf("duplicate title %q", a.Title)
		}
		titles[a.Title] = true
	}
	if len(pass.Articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(pass.Articles))
	}
	for i := 1; i < len(pass.Articles); i++ {
		if pass.Articles[i].Published.After(pass.Articles[i-1].Published) {
			t.Fatalf("articles not sorted by published desc")
		}
	}
	if pass.Articles[0].Kind != domain.KindTwitter || pass.Articles[0].ID != "twitter_1" {
		t.Fatalf("first tweet should win the title: %+v", pass.Articles[0])
	}
	if pass.Reports[0].Source != "twitter" || pass.Reports[0].Kept != 1 || pass.Reports[1].Kept != 2 {
		t.Fatalf("unexpected reports: %+v", pass.Reports)
	}
}

func TestAggregateReplacesPreviousQueryResults(t *testing.T) {
	news := newsFetcher("Banjir 1", "Banjir 2")
	agg, store := newTestAggregator(news)
	ctx := context.Background()

	first := agg.Aggregate(ctx, "banjir")
	second := agg.Aggregate(ctx, "banjir")
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("unexpected pass sizes %d/%d", len(first), len(second))
	}

	stored, err := store.ListByQuery(ctx, "banjir", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("repeated aggregation should replace prior articles, have %d", len(stored))
	}
	for _, a := range stored {
		if a.ID == first[0].ID || a.ID == first[1].ID {
			t.Fatalf("article from first pass survived: %s", a.ID)
		}
	}
}

func TestAggregateDisabledAndFailingFetchers(t *testing.T) {
	news := newsFetcher("Only")
	off := &fakeFetcher{name: "facebook", kind: domain.KindFacebook, records: []collector.Record{
		collector.PagePost{PostID: "1", Page: "p", Text: "x"},
	}}
	slow := &fakeFetcher{name: "instagram", kind: domain.KindInstagram, enabled: true, block: true}
	bad := &fakeFetcher{name: "twitter", kind: domain.KindTwitter, enabled: true, panics: true}
	agg, _ := newTestAggregator(news, off, slow, bad)

	pass := agg.Run(context.Background(), "")
	if len(pass.Articles) != 1 || pass.Articles[0].Title != "Only" {
		t.Fatalf("only the news article should survive: %+v", pass.Articles)
	}
	if off.calls != 0 {
		t.Fatalf("disabled fetcher must not be called")
	}

	byName := map[string]Report{}
	for _, r := range pass.Reports {
		byName[r.Source] = r
	}
	if byName["facebook"].Status != collector.StatusDisabled {
		t.Fatalf("facebook status = %s", byName["facebook"].Status)
	}
	if byName["instagram"].Status != collector.StatusFailed || byName["instagram"].Error == "" {
		t.Fatalf("timed out fetcher should be failed: %+v", byName["instagram"])
	}
	if byName["twitter"].Status != collector.StatusFailed {
		t.Fatalf("panicking fetcher should be failed: %+v", byName["twitter"])
	}
}

func TestAggregateCapsPerKind(t *testing.T) {
	var recs []collector.Record
	for i := 0; i < 8; i++ {
		recs = append(recs, collector.PhotoPost{Shortcode: fmt.Sprint(i), Owner: "o", Caption: fmt.Sprintf("caption %d", i)})
	}
	ig := &fakeFetcher{name: "instagram", kind: domain.KindInstagram, enabled: true, records: recs}
	agg, _ := newTestAggregator(ig)

	if got := agg.Aggregate(context.Background(), ""); len(got) != DefaultCaps[domain.KindInstagram] {
		t.Fatalf("expected cap %d, got %d", DefaultCaps[domain.KindInstagram], len(got))
	}
}

func TestServeCacheFirst(t *testing.T) {
	ctx := context.Background()
	news := newsFetcher("Fresh")
	agg, store := newTestAggregator(news)

	articles, origin := agg.Serve(ctx, "gempa")
	if origin != OriginFresh || len(articles) != 1 || news.calls != 1 {
		t.Fatalf("expected fresh fetch, got %s %d calls=%d", origin, len(articles), news.calls)
	}

	for i := 0; i < 12; i++ {
		_ = store.Save(ctx, domain.Article{
			ID:          fmt.Sprintf("c%d", i),
			Title:       fmt.Sprintf("Cached %d", i),
			SearchQuery: "gempa",
			Published:   *at(i),
		})
	}
	articles, origin = agg.Serve(ctx, "gempa")
	if origin != OriginCache {
		t.Fatalf("expected cache origin, got %s", origin)
	}
	if news.calls != 1 {
		t.Fatalf("cache hit must not refetch")
	}
	if len(articles) != 13 {
		t.Fatalf("expected all 13 stored articles, got %d", len(articles))
	}
	if articles[0].Title != "Cached 11" {
		t.Fatalf("cached articles should be sorted by published desc, first=%q", articles[0].Title)
	}
}

func seedCache(t *testing.T, store *storage.ArticleStore, query string, titles []string) {
	t.Helper()
	for i, title := range titles {
		err := store.Save(context.Background(), domain.Article{
			ID:          fmt.Sprintf("seed%02d", i),
			Title:       title,
			SearchQuery: query,
			Published:   *at(i % 24),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Stored %d", i)
	}
	return out
}

func TestServeCacheThreshold(t *testing.T) {
	cases := []struct {
		name       string
		titles     []string
		wantOrigin string
		wantLen    int
	}{
		{"nine stored", numbered(9), OriginFresh, 1},
		{"ten stored", numbered(10), OriginCache, 10},
		{"read capped at thirty", numbered(35), OriginCache, 30},
		{"duplicate titles do not count", append(numbered(9), "Stored 0"), OriginFresh, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			news := newsFetcher("Fresh")
			agg, store := newTestAggregator(news)
			seedCache(t, store, "gempa", tc.titles)

			articles, origin := agg.Serve(context.Background(), "gempa")
			if origin != tc.wantOrigin || len(articles) != tc.wantLen {
				t.Fatalf("Serve = %s with %d articles, want %s with %d", origin, len(articles), tc.wantOrigin, tc.wantLen)
			}
			if wantCalls := map[string]int{OriginFresh: 1, OriginCache: 0}[tc.wantOrigin]; news.calls != wantCalls {
				t.Fatalf("fetcher called %d times, want %d", news.calls, wantCalls)
			}
		})
	}
}

func TestCapsAreCopiedPerAggregator(t *testing.T) {
	agg, _ := newTestAggregator()
	agg.Caps[domain.KindTwitter] = 1
	if DefaultCaps[domain.KindTwitter] != 10 {
		t.Fatalf("changing one aggregator's caps leaked into DefaultCaps: %v", DefaultCaps)
	}

	merged := MergeCaps(map[domain.SourceKind]int{domain.KindFacebook: 2})
	if merged[domain.KindFacebook] != 2 || merged[domain.KindInstagram] != DefaultCaps[domain.KindInstagram] {
		t.Fatalf("unexpected merge: %v", merged)
	}
}
