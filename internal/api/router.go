package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/MediaMon/internal/aggregator"
	"github.com/LJTian/MediaMon/internal/apikey"
	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/LJTian/MediaMon/internal/ratelimit"
	"github.com/LJTian/MediaMon/internal/sentiment"
	"github.com/LJTian/MediaMon/internal/storage"
	"github.com/LJTian/MediaMon/internal/token"
	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 30
	maxLimit     = 100
)

// newsSources /sources 中展示的默认新闻源
var newsSources = []gin.H{
	{"id": "kompas", "name": "Kompas", "language": "id"},
	{"id": "tempo", "name": "Tempo", "language": "id"},
	{"id": "republika", "name": "Republika", "language": "id"},
	{"id": "detik", "name": "Detik", "language": "id"},
	{"id": "theguardian", "name": "The Guardian", "language": "en"},
	{"id": "nytimes", "name": "New York Times", "language": "en"},
}

type Server struct {
	agg       *aggregator.Aggregator
	articles  *storage.ArticleStore
	keys      *apikey.Manager
	limiter   ratelimit.Limiter
	tokens    *token.Issuer
	scorer    *sentiment.Scorer
	masterKey string
	now       func() time.Time
}

// Deps Server 依赖的组件
type Deps struct {
	Aggregator *aggregator.Aggregator
	Articles   *storage.ArticleStore
	Keys       *apikey.Manager
	Limiter    ratelimit.Limiter
	Tokens     *token.Issuer
	Scorer     *sentiment.Scorer
	// MasterKey 为空时只接受托管的 API key 换取 token
	MasterKey string
}

func NewServer(d Deps) *Server {
	scorer := d.Scorer
	if scorer == nil {
		scorer = sentiment.NewScorer(nil)
	}
	return &Server{
		agg:       d.Aggregator,
		articles:  d.Articles,
		keys:      d.Keys,
		limiter:   d.Limiter,
		tokens:    d.Tokens,
		scorer:    scorer,
		masterKey: d.MasterKey,
		now:       time.Now,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api")
	api.POST("/auth/token", s.issueToken)

	bearer := api.Group("", s.requireBearer())
	{
		bearer.GET("/articles", s.listArticles)
		bearer.GET("/articles/:id", s.getArticle)
		bearer.GET("/sources", s.listSources)
		bearer.POST("/sentiment", s.analyzeSentiment)
	}

	managed := api.Group("/managed", s.requireAPIKey())
	{
		managed.GET("/articles", s.serveArticles)
		managed.GET("/articles/:id", s.getArticle)

		admin := managed.Group("/admin", s.requireAdmin())
		admin.POST("/keys", s.createKey)
		admin.GET("/keys", s.listKeys)
		admin.DELETE("/keys/:key", s.revokeKey)
		admin.PUT("/keys/:key/tier", s.setTier)
		admin.POST("/ratelimit/reset", s.resetRateLimit)
	}
}

func (s *Server) health(c *gin.Context) {
	s.respond(c, http.StatusOK, "", gin.H{"status": "ok"})
}

func (s *Server) issueToken(c *gin.Context) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.APIKey == "" {
		s.respond(c, http.StatusUnauthorized, "Invalid API key", nil)
		return
	}

	subject := ""
	if s.masterKey != "" && subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.masterKey)) == 1 {
		subject = "master"
	} else if s.keys != nil {
		key, err := s.keys.Validate(c.Request.Context(), req.APIKey)
		if err != nil && !errors.Is(err, apikey.ErrNotFound) {
			log.Printf("api: validate key failed: %v", err)
			s.respond(c, http.StatusInternalServerError, "internal server error", nil)
			return
		}
		if err == nil {
			subject = key.OwnerID
		}
	}
	if subject == "" {
		s.respond(c, http.StatusUnauthorized, "Invalid API key", nil)
		return
	}

	tok, err := s.tokens.Issue(subject)
	if err != nil {
		log.Printf("api: issue token failed: %v", err)
		s.respond(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	s.respond(c, http.StatusOK, "Authentication successful", gin.H{"token": tok})
}

// listArticles 总是重新聚合，再按来源与语言过滤
func (s *Server) listArticles(c *gin.Context) {
	articles := s.agg.Aggregate(c.Request.Context(), strings.TrimSpace(c.Query("query")))
	articles = filterArticles(articles, c.Query("source"), c.Query("language"))
	articles = applyLimit(articles, parseLimit(c.Query("limit")))
	s.respond(c, http.StatusOK, fmt.Sprintf("Retrieved %d articles", len(articles)), articles)
}

// serveArticles 托管接口走缓存优先
func (s *Server) serveArticles(c *gin.Context) {
	articles, origin := s.agg.Serve(c.Request.Context(), strings.TrimSpace(c.Query("query")))
	articles = filterArticles(articles, c.Query("source"), c.Query("language"))
	articles = applyLimit(articles, parseLimit(c.Query("limit")))
	s.respond(c, http.StatusOK, fmt.Sprintf("Retrieved %d articles", len(articles)), gin.H{
		"articles": articles,
		"source":   origin,
	})
}

func (s *Server) getArticle(c *gin.Context) {
	a, err := s.articles.Get(c.Request.Context(), c.Param("id"))
	if storage.IsNotFound(err) {
		s.respond(c, http.StatusNotFound, "Article not found", nil)
		return
	}
	if err != nil {
		log.Printf("api: get article failed: %v", err)
		s.respond(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	s.respond(c, http.StatusOK, "Article retrieved successfully", a)
}

func (s *Server) listSources(c *gin.Context) {
	social := []gin.H{}
	for _, f := range s.agg.Fetchers() {
		if f.Kind() == domain.KindNews {
			continue
		}
		social = append(social, gin.H{
			"id":      string(f.Kind()),
			"name":    displayName(f.Kind()),
			"enabled": f.Enabled(),
		})
	}
	s.respond(c, http.StatusOK, "Available sources retrieved", gin.H{
		"news":         newsSources,
		"social_media": social,
	})
}

func (s *Server) analyzeSentiment(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		s.respond(c, http.StatusBadRequest, "No text provided", nil)
		return
	}
	res := s.scorer.Analyze(req.Text)
	s.respond(c, http.StatusOK, "Sentiment analysis completed", gin.H{
		"text":            req.Text,
		"language":        res.Language,
		"sentiment_score": res.Score,
		"sentiment_label": res.Label,
		"sentiment_color": res.Color,
	})
}

func (s *Server) createKey(c *gin.Context) {
	var req struct {
		OwnerID     string   `json:"owner_id"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OwnerID == "" {
		s.respond(c, http.StatusBadRequest, "owner_id is required", nil)
		return
	}
	key, err := s.keys.Generate(c.Request.Context(), req.OwnerID, req.Name, req.Permissions...)
	if err != nil {
		log.Printf("api: generate key failed: %v", err)
		s.respond(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	s.respond(c, http.StatusCreated, "API key created", key)
}

func (s *Server) listKeys(c *gin.Context) {
	owner := c.Query("owner_id")
	if owner == "" {
		s.respond(c, http.StatusBadRequest, "owner_id is required", nil)
		return
	}
	keys, err := s.keys.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		log.Printf("api: list keys failed: %v", err)
		s.respond(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	s.respond(c, http.StatusOK, fmt.Sprintf("Retrieved %d keys", len(keys)), keys)
}

func (s *Server) revokeKey(c *gin.Context) {
	key := c.Param("key")
	if err := s.keys.Revoke(c.Request.Context(), key); err != nil {
		log.Printf("api: revoke key failed: %v", err)
		s.respond(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	if err := s.limiter.Reset(c.Request.Context(), key); err != nil {
		log.Printf("api: reset window of revoked key failed: %v", err)
	}
	s.respond(c, http.StatusOK, "API key revoked", nil)
}

func (s *Server) setTier(c *gin.Context) {
	var req struct {
		Tier string `json:"tier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Tier == "" {
		s.respond(c, http.StatusBadRequest, "tier is required", nil)
		return
	}
	key, err := s.keys.SetTier(c.Request.Context(), c.Param("key"), req.Tier)
	if errors.Is(err, apikey.ErrNotFound) {
		s.respond(c, http.StatusNotFound, "API key not found", nil)
		return
	}
	if err != nil {
		log.Printf("api: set tier failed: %v", err)
		s.respond(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	s.respond(c, http.StatusOK, "Tier updated", key)
}

// resetRateLimit body 带 key 时只重置该 key，否则全部重置
func (s *Server) resetRateLimit(c *gin.Context) {
	var req struct {
		Key string `json:"key"`
	}
	_ = c.ShouldBindJSON(&req)

	var err error
	msg := "All rate limits reset"
	if req.Key != "" {
		err = s.limiter.Reset(c.Request.Context(), req.Key)
		msg = "Rate limit reset"
	} else {
		err = s.limiter.ResetAll(c.Request.Context())
	}
	if err != nil {
		log.Printf("api: reset rate limit failed: %v", err)
		s.respond(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	s.respond(c, http.StatusOK, msg, nil)
}

func parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func applyLimit(articles []domain.Article, limit int) []domain.Article {
	if articles == nil {
		return []domain.Article{}
	}
	if len(articles) > limit {
		return articles[:limit]
	}
	return articles
}

// filterArticles source 既可以是来源类别（news/twitter/...）也可以是展示来源名
func filterArticles(articles []domain.Article, source, language string) []domain.Article {
	if source == "" && language == "" {
		return articles
	}
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if source != "" && string(a.Kind) != source && !strings.EqualFold(a.Source, source) {
			continue
		}
		if language != "" && string(a.Language) != language {
			continue
		}
		out = append(out, a)
	}
	return out
}

func displayName(kind domain.SourceKind) string {
	switch kind {
	case domain.KindTwitter:
		return "Twitter"
	case domain.KindFacebook:
		return "Facebook"
	case domain.KindInstagram:
		return "Instagram"
	default:
		return string(kind)
	}
}
