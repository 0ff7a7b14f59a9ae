package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func rssBody(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/"><channel><title>t</title>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>Item %d</title><link>https://example.com/%d</link><description>desc %d</description><pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate></item>`, i, i, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestFetchFeedTakesFirstTenEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssBody(15)))
	}))
	defer srv.Close()

	f := NewFeedFetcher(FeedPlan{})
	records, err := f.FetchFeed(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchFeed error: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("expected 10 records, got %d", len(records))
	}
	e := records[0].(FeedEntry)
	if e.Title != "Item 0" || e.Link != "https://example.com/0" || e.Summary != "desc 0" || e.Published == nil {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestFetchFeedSkipsUntitledAndKeepsMissingDate(t *testing.T) {
	body := `<?xml version="1.0"?><rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/"><channel><title>t</title>
<item><link>https://example.com/none</link></item>
<item><title>Undated - Kompas.com</title><link>https://news.google.com/x</link><dc:publisher>Kompas</dc:publisher></item>
</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	records, err := NewFeedFetcher(FeedPlan{}).FetchFeed(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchFeed error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	e := records[0].(FeedEntry)
	if e.Published != nil {
		t.Fatalf("missing pubDate should stay nil, got %v", e.Published)
	}
	if e.SourceName != "Kompas" || e.FeedURL != srv.URL {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestFeedFetcherKeepsFeedOrderAndSurvivesFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssBody(3)))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()

	f := NewFeedFetcher(FeedPlan{Default: []string{bad.URL, good.URL + "/a", good.URL + "/b"}})
	res := f.Fetch(context.Background(), "", 100)
	if res.Status != StatusOK {
		t.Fatalf("status = %s (%v), want ok", res.Status, res.Err)
	}
	if len(res.Records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(res.Records))
	}
	if got := res.Records[3].(FeedEntry).FeedURL; got != good.URL+"/b" {
		t.Fatalf("records should follow feed order, got %s at index 3", got)
	}

	res = f.Fetch(context.Background(), "", 4)
	if len(res.Records) != 4 {
		t.Fatalf("limit not applied: %d", len(res.Records))
	}
}

func TestFeedFetcherAllFailed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer bad.Close()

	res := NewFeedFetcher(FeedPlan{Default: []string{bad.URL}}).Fetch(context.Background(), "", 10)
	if res.Status != StatusFailed || res.Err == nil {
		t.Fatalf("expected failed result, got %+v", res)
	}
}
