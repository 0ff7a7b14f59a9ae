package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const facebookBaseURL = "https://mbasic.facebook.com"

// DefaultAccounts 默认关注的印尼新闻主页/账号
var DefaultAccounts = []string{"detikcom", "kompascom", "tribunnews"}

// PageFetcher 使用 colly 抓取 mbasic 版公共主页的帖子
type PageFetcher struct {
	Email    string
	Password string
	Pages    []string
	BaseURL  string
	Timeout  time.Duration
}

func NewPageFetcher(email, password string, pages []string) *PageFetcher {
	if len(pages) == 0 {
		pages = DefaultAccounts
	}
	return &PageFetcher{
		Email:    email,
		Password: password,
		Pages:    pages,
		BaseURL:  facebookBaseURL,
		Timeout:  10 * time.Second,
	}
}

func (p *PageFetcher) Name() string            { return "facebook" }
func (p *PageFetcher) Kind() domain.SourceKind { return domain.KindFacebook }

func (p *PageFetcher) Enabled() bool {
	return p.Email != "" && p.Password != ""
}

func (p *PageFetcher) Fetch(ctx context.Context, query string, limit int) Result {
	if !p.Enabled() {
		log.Println("facebook: credentials not configured, skip")
		return disabled(p)
	}

	c := colly.NewCollector(colly.UserAgent("Mozilla/5.0 (Linux; Android 10) MediaMonBot/1.0"))
	c.SetRequestTimeout(p.Timeout)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	if err := c.Post(p.BaseURL+"/login.php", map[string]string{"email": p.Email, "pass": p.Password}); err != nil {
		// 登录失败时公共主页仍可能可见，继续尝试
		log.Printf("facebook: login failed: %v", err)
	}

	var (
		page     string
		pagePost []PagePost
	)
	c.OnHTML("body", func(e *colly.HTMLElement) {
		pagePost = append(pagePost, parsePagePosts(e.DOM, page, e.Request.AbsoluteURL)...)
	})

	var records []Record
	var visitErrs int
	for _, pg := range p.Pages {
		if ctx.Err() != nil {
			break
		}
		page, pagePost = pg, nil
		if err := c.Visit(p.BaseURL + "/" + pg); err != nil {
			log.Printf("facebook: fetch page %s: %v", pg, err)
			visitErrs++
			continue
		}

		count := 0
		for _, post := range pagePost {
			// limit < 0 表示不限
			if limit >= 0 && count >= limit {
				break
			}
			if !containsFold(post.Text, query) {
				continue
			}
			records = append(records, post)
			count++
		}
	}

	if len(records) == 0 && visitErrs == len(p.Pages) && len(p.Pages) > 0 {
		return failed(p, fmt.Errorf("facebook: all %d pages failed", visitErrs))
	}
	if err := ctx.Err(); err != nil && len(records) == 0 {
		return failed(p, err)
	}
	// 每个主页单独封顶，总数不超过 主页数 x limit
	return finish(p, records, totalCap(limit, len(p.Pages)))
}

// parsePagePosts 从页面中提取带 data-ft 的帖子块；没有正文或 ID 的块跳过
func parsePagePosts(doc *goquery.Selection, page string, abs func(string) string) []PagePost {
	var posts []PagePost
	seen := make(map[string]struct{})

	doc.Find("div[data-ft]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("data-ft")
		var ft map[string]any
		if err := json.Unmarshal([]byte(raw), &ft); err != nil {
			return
		}
		id := stringValue(ft["top_level_post_id"])
		if id == "" {
			id = stringValue(ft["mf_story_key"])
		}
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}

		var parts []string
		s.Find("p").Each(func(_ int, p *goquery.Selection) {
			if t := strings.TrimSpace(p.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		text := strings.Join(parts, " ")
		if text == "" {
			return
		}
		seen[id] = struct{}{}

		post := PagePost{PostID: id, Page: page, Text: text}
		s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if strings.Contains(href, "story.php") || strings.Contains(href, "/posts/") || strings.Contains(href, "permalink") {
				post.URL = abs(href)
				return false
			}
			return true
		})
		if post.URL == "" {
			post.URL = abs("/" + page)
		}
		if ts, ok := findPublishTime(ft); ok {
			t := time.Unix(ts, 0)
			post.Time = &t
		}
		posts = append(posts, post)
	})
	return posts
}

// findPublishTime 在 data-ft 的嵌套结构中查找 publish_time
func findPublishTime(v any) (int64, bool) {
	switch t := v.(type) {
	case map[string]any:
		if pt, ok := t["publish_time"]; ok {
			if n, err := strconv.ParseInt(stringValue(pt), 10, 64); err == nil {
				return n, true
			}
		}
		for _, child := range t {
			if n, ok := findPublishTime(child); ok {
				return n, true
			}
		}
	case []any:
		for _, child := range t {
			if n, ok := findPublishTime(child); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
