package collector

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/LJTian/MediaMon/internal/lang"
)

// Topic 主题词与对应的订阅源列表
type Topic struct {
	Name  string   `yaml:"name"`
	Feeds []string `yaml:"feeds"`
}

// FeedPlan 决定一次搜索要抓取哪些订阅源
type FeedPlan struct {
	Default []string
	Topics  []Topic
}

// DefaultFeeds 无搜索词时的印尼本地与国际新闻源
var DefaultFeeds = []string{
	"https://www.kompas.com/rss/",
	"https://rss.tempo.co/",
	"https://www.republika.co.id/rss/",
	"https://www.detik.com/rss",
	"https://www.theguardian.com/world/rss",
	"https://rss.nytimes.com/services/xml/rss/nyt/World.xml",
}

// DefaultTopics 英文与印尼文主题词，按顺序匹配
var DefaultTopics = []Topic{
	{Name: "technology", Feeds: []string{
		"https://www.theverge.com/rss/index.xml",
		"https://feeds.wired.com/wired/index",
		"https://www.techno.id/rss",
		"https://tekno.kompas.com/rss/",
	}},
	{Name: "politics", Feeds: []string{
		"https://rss.nytimes.com/services/xml/rss/nyt/Politics.xml",
		"https://nasional.kompas.com/rss/",
		"https://rss.tempo.co/nasional",
	}},
	{Name: "business", Feeds: []string{
		"https://rss.nytimes.com/services/xml/rss/nyt/Business.xml",
		"https://ekonomi.kompas.com/rss/",
		"https://www.cnbcindonesia.com/rss",
	}},
	{Name: "health", Feeds: []string{
		"https://rss.nytimes.com/services/xml/rss/nyt/Health.xml",
		"https://health.kompas.com/rss/",
		"https://www.klikdokter.com/rss",
	}},
	{Name: "teknologi", Feeds: []string{
		"https://tekno.kompas.com/rss/",
		"https://www.techno.id/rss",
	}},
	{Name: "politik", Feeds: []string{
		"https://nasional.kompas.com/rss/",
		"https://rss.tempo.co/nasional",
	}},
	{Name: "bisnis", Feeds: []string{
		"https://ekonomi.kompas.com/rss/",
		"https://www.cnbcindonesia.com/rss",
	}},
	{Name: "kesehatan", Feeds: []string{
		"https://health.kompas.com/rss/",
		"https://www.klikdokter.com/rss",
	}},
}

func DefaultFeedPlan() FeedPlan {
	return FeedPlan{Default: DefaultFeeds, Topics: DefaultTopics}
}

const googleNewsSearch = "https://news.google.com/rss/search?q="

// GoogleNewsURL 按语言选择 Google News 搜索地区
func GoogleNewsURL(query string) string {
	q := url.QueryEscape(query)
	if lang.IsIndonesian(query) {
		return googleNewsSearch + q + "&hl=id-ID&gl=ID&ceid=ID:id"
	}
	return googleNewsSearch + q + "&hl=en-US&gl=US&ceid=US:en"
}

// GoogleNewsIndonesiaURL 附加 Indonesia 限定词的印尼地区搜索
func GoogleNewsIndonesiaURL(query string) string {
	return googleNewsSearch + url.QueryEscape(query) + "+Indonesia&hl=id-ID&gl=ID&ceid=ID:id"
}

// Resolve 返回要抓取的订阅源，同一地址只出现一次
func (p FeedPlan) Resolve(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return dedupStrings(p.Default)
	}

	feeds := []string{GoogleNewsURL(query), GoogleNewsIndonesiaURL(query)}
	lower := strings.ToLower(query)
	for _, t := range p.Topics {
		if matchWord(lower, strings.ToLower(t.Name)) {
			feeds = append(feeds, t.Feeds...)
		}
	}
	return dedupStrings(feeds)
}

// matchWord 词边界匹配，不做子串匹配
func matchWord(text, word string) bool {
	if word == "" {
		return false
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func dedupStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
