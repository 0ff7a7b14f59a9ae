package collector

import (
	"context"
	"strings"
	"time"

	"github.com/LJTian/MediaMon/internal/domain"
)

// Record 各来源的原始条目，按来源类别区分具体类型
type Record interface {
	Kind() domain.SourceKind
}

// FeedEntry RSS/Atom 订阅源中的一条
type FeedEntry struct {
	FeedURL    string
	Title      string
	Link       string
	Summary    string
	SourceName string // 条目自带的来源名（如 dc:publisher），可为空
	Published  *time.Time
}

// Tweet 微博客搜索结果
type Tweet struct {
	ID           string
	Text         string
	ScreenName   string
	ProfileImage string
	CreatedAt    *time.Time
	Retweet      bool
}

// PagePost 公共主页帖子
type PagePost struct {
	PostID string
	Page   string
	Text   string
	URL    string
	Time   *time.Time
}

// PhotoPost 图片分享帖子
type PhotoPost struct {
	Shortcode string
	Owner     string
	Caption   string
	TakenAt   *time.Time
}

func (FeedEntry) Kind() domain.SourceKind { return domain.KindNews }
func (Tweet) Kind() domain.SourceKind     { return domain.KindTwitter }
func (PagePost) Kind() domain.SourceKind  { return domain.KindFacebook }
func (PhotoPost) Kind() domain.SourceKind { return domain.KindInstagram }

// Status 一次采集的结果状态
type Status string

const (
	StatusOK       Status = "ok"
	StatusEmpty    Status = "empty"
	StatusDisabled Status = "disabled"
	StatusFailed   Status = "failed"
)

// Result 采集器对外返回的结果，失败原因放在 Err 中而不是直接返回 error
type Result struct {
	Source  string
	Kind    domain.SourceKind
	Status  Status
	Records []Record
	Err     error
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Kind() domain.SourceKind
	// Enabled 凭证是否配置完整；未启用时 Fetch 返回 disabled 且不报错
	Enabled() bool
	// Fetch 不向外抛错，limit 是本次返回条数的硬上限
	Fetch(ctx context.Context, query string, limit int) Result
}

func disabled(f Fetcher) Result {
	return Result{Source: f.Name(), Kind: f.Kind(), Status: StatusDisabled}
}

func failed(f Fetcher, err error) Result {
	return Result{Source: f.Name(), Kind: f.Kind(), Status: StatusFailed, Err: err}
}

func finish(f Fetcher, records []Record, limit int) Result {
	if limit >= 0 && len(records) > limit {
		records = records[:limit]
	}
	status := StatusOK
	if len(records) == 0 {
		status = StatusEmpty
	}
	return Result{Source: f.Name(), Kind: f.Kind(), Status: status, Records: records}
}

// totalCap 按来源数放大单来源上限，负数保持不限
func totalCap(limit, sources int) int {
	if limit < 0 {
		return -1
	}
	return limit * sources
}

func containsFold(text, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}
