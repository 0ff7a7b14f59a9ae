package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/MediaMon/internal/collector"
	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/LJTian/MediaMon/internal/sentiment"
	"github.com/google/uuid"
)

const (
	socialTitleRunes = 50
	noSummary        = "No summary available"
	noCaption        = "No caption"
)

// Normalizer 把各来源的原始条目转换成统一的 Article，并完成语言判断与情感打分
type Normalizer struct {
	scorer *sentiment.Scorer
	now    func() time.Time
	newID  func() string

	// ContentHashIDs 为 true 时订阅源条目用链接哈希做 ID，重复抓取会覆盖而不是累积
	ContentHashIDs bool
}

func NewNormalizer(scorer *sentiment.Scorer) *Normalizer {
	if scorer == nil {
		scorer = sentiment.NewScorer(nil)
	}
	return &Normalizer{
		scorer: scorer,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// WithClock 替换时钟，方便测试
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Process 逐条转换，跳过 seen 中已有的标题并把新标题登记进去；单条失败只跳过该条
func (n *Normalizer) Process(records []collector.Record, query string, seen map[string]struct{}) []domain.Article {
	out := make([]domain.Article, 0, len(records))
	for _, rec := range records {
		a, ok := n.Normalize(rec, query)
		if !ok {
			continue
		}
		if seen != nil {
			if _, dup := seen[a.Title]; dup {
				continue
			}
			seen[a.Title] = struct{}{}
		}
		out = append(out, a)
	}
	return out
}

// Normalize 转换单条记录；不认识的记录类型或转换中的 panic 返回 false
func (n *Normalizer) Normalize(rec collector.Record, query string) (a domain.Article, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("processor: skip record %T: %v", rec, r)
			a, ok = domain.Article{}, false
		}
	}()

	now := n.now()
	switch r := rec.(type) {
	case collector.FeedEntry:
		a = n.fromFeedEntry(r, now)
	case *collector.FeedEntry:
		a = n.fromFeedEntry(*r, now)
	case collector.Tweet:
		a = n.fromTweet(r, now)
	case collector.PagePost:
		a = n.fromPagePost(r, now)
	case collector.PhotoPost:
		a = n.fromPhotoPost(r, now)
	default:
		log.Printf("processor: unknown record type %T", rec)
		return domain.Article{}, false
	}

	a.SearchQuery = domain.QueryTag(query)
	a.CreatedAt = now
	return a, true
}

func (n *Normalizer) fromFeedEntry(e collector.FeedEntry, now time.Time) domain.Article {
	title := strings.TrimSpace(e.Title)
	link := strings.TrimSpace(e.Link)
	if link == "" {
		link = e.FeedURL
	}
	summary := e.Summary
	if strings.TrimSpace(summary) == "" {
		summary = noSummary
	}

	id := n.newID()
	if n.ContentHashIDs {
		id = "news_" + hashURL(link+"\n"+title)
	}

	a := domain.Article{
		ID:        id,
		Title:     title,
		Summary:   summary,
		Link:      link,
		Published: timeOr(e.Published, now),
		Source:    SourceName(link, title, e.SourceName),
		Kind:      domain.KindNews,
	}
	n.score(&a, title)
	return a
}

func (n *Normalizer) fromTweet(t collector.Tweet, now time.Time) domain.Article {
	a := domain.Article{
		ID:           fmt.Sprintf("%s_%s", domain.KindTwitter, t.ID),
		Title:        socialTitle("@"+t.ScreenName, t.Text),
		Summary:      t.Text,
		Link:         fmt.Sprintf("https://twitter.com/%s/status/%s", t.ScreenName, t.ID),
		Published:    timeOr(t.CreatedAt, now),
		Source:       "Twitter",
		Kind:         domain.KindTwitter,
		User:         t.ScreenName,
		ProfileImage: t.ProfileImage,
	}
	n.score(&a, t.Text)
	return a
}

func (n *Normalizer) fromPagePost(p collector.PagePost, now time.Time) domain.Article {
	a := domain.Article{
		ID:        fmt.Sprintf("%s_%s", domain.KindFacebook, p.PostID),
		Title:     socialTitle("Facebook", p.Text),
		Summary:   p.Text,
		Link:      p.URL,
		Published: timeOr(p.Time, now),
		Source:    "Facebook/" + p.Page,
		Kind:      domain.KindFacebook,
		User:      p.Page,
	}
	n.score(&a, p.Text)
	return a
}

func (n *Normalizer) fromPhotoPost(p collector.PhotoPost, now time.Time) domain.Article {
	caption := p.Caption
	if strings.TrimSpace(caption) == "" {
		caption = noCaption
	}
	a := domain.Article{
		ID:        fmt.Sprintf("%s_%s", domain.KindInstagram, p.Shortcode),
		Title:     socialTitle("Instagram", caption),
		Summary:   caption,
		Link:      fmt.Sprintf("https://www.instagram.com/p/%s/", p.Shortcode),
		Published: timeOr(p.TakenAt, now),
		Source:    "Instagram/" + p.Owner,
		Kind:      domain.KindInstagram,
		User:      p.Owner,
	}
	n.score(&a, caption)
	return a
}

// score 语言与情感都基于同一段文本：新闻用标题，社交帖子用正文
func (n *Normalizer) score(a *domain.Article, text string) {
	res := n.scorer.Analyze(text)
	a.Language = res.Language
	a.SentimentScore = res.Score
	a.SentimentLabel = res.Label
	a.SentimentColor = res.Color
}

// socialTitle 社交帖子的展示标题：前缀 + 正文前 50 个字符 + ...
func socialTitle(prefix, body string) string {
	return fmt.Sprintf("%s: %s...", prefix, truncateRunes(body, socialTitleRunes))
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return *t
}

// DedupTitles 保留每个标题第一次出现的文章
func DedupTitles(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.Title]; ok {
			continue
		}
		seen[a.Title] = struct{}{}
		out = append(out, a)
	}
	return out
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
