package domain

import "time"

// SourceKind 内容来源类别
type SourceKind string

const (
	KindNews      SourceKind = "news"
	KindTwitter   SourceKind = "twitter"
	KindFacebook  SourceKind = "facebook"
	KindInstagram SourceKind = "instagram"
)

// Kinds 按固定顺序列出所有来源类别，聚合时也按此顺序合并
var Kinds = []SourceKind{KindNews, KindTwitter, KindFacebook, KindInstagram}

// Language 文章语言，只区分印尼语与其它（按英文处理）
type Language string

const (
	LangIndonesian Language = "id"
	LangEnglish    Language = "en"
)

// DefaultQuery 无搜索词时写入 search_query 的哨兵值
const DefaultQuery = "default"

// Article 所有来源统一后的文章结构
type Article struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary"`
	Link           string     `json:"link"`
	Published      time.Time  `json:"published"`
	Source         string     `json:"source"`
	Kind           SourceKind `json:"source_kind"`
	Language       Language   `json:"language"`
	SentimentScore float64    `json:"sentiment_score"`
	SentimentLabel string     `json:"sentiment_label"`
	SentimentColor string     `json:"sentiment_color"`
	SearchQuery    string     `json:"search_query"`

	// 社交来源附带的作者信息
	User         string `json:"user,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// QueryTag 返回写入 search_query 的值
func QueryTag(query string) string {
	if query == "" {
		return DefaultQuery
	}
	return query
}
