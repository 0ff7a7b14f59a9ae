package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/MediaMon/internal/domain"
)

const (
	twitterBaseURL          = "https://api.twitter.com"
	twitterMaxResponseBytes = 1 << 20 // 1MB
	twitterClientTimeout    = 10 * time.Second
	twitterDefaultQuery     = "indonesia"
)

// TwitterCredentials 微博客 API 凭证；API key 与 secret 齐全才启用
type TwitterCredentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	BearerToken  string
}

// TwitterFetcher 通过 v2 recent search 接口抓取推文，排除转推
type TwitterFetcher struct {
	Creds        TwitterCredentials
	DefaultQuery string
	BaseURL      string
	Client       *http.Client

	mu     sync.Mutex
	bearer string
}

func NewTwitterFetcher(creds TwitterCredentials, defaultQuery string) *TwitterFetcher {
	if defaultQuery == "" {
		defaultQuery = twitterDefaultQuery
	}
	return &TwitterFetcher{
		Creds:        creds,
		DefaultQuery: defaultQuery,
		BaseURL:      twitterBaseURL,
		Client:       &http.Client{Timeout: twitterClientTimeout},
	}
}

func (t *TwitterFetcher) Name() string            { return "twitter" }
func (t *TwitterFetcher) Kind() domain.SourceKind { return domain.KindTwitter }

func (t *TwitterFetcher) Enabled() bool {
	return t.Creds.APIKey != "" && t.Creds.APISecret != ""
}

type twitterSearchResponse struct {
	Data []struct {
		ID               string `json:"id"`
		Text             string `json:"text"`
		AuthorID         string `json:"author_id"`
		CreatedAt        string `json:"created_at"`
		ReferencedTweets []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"referenced_tweets"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID              string `json:"id"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"users"`
	} `json:"includes"`
}

func (t *TwitterFetcher) Fetch(ctx context.Context, query string, limit int) Result {
	if !t.Enabled() {
		log.Println("twitter: credentials not configured, skip")
		return disabled(t)
	}
	if limit == 0 {
		return finish(t, nil, limit)
	}

	tweets, err := t.search(ctx, query, limit)
	if err != nil {
		log.Printf("twitter: fetch failed: %v", err)
		return failed(t, err)
	}

	records := make([]Record, 0, len(tweets))
	for _, tw := range tweets {
		if tw.Retweet || strings.TrimSpace(tw.Text) == "" {
			continue
		}
		records = append(records, tw)
	}
	return finish(t, records, limit)
}

func (t *TwitterFetcher) search(ctx context.Context, query string, limit int) ([]Tweet, error) {
	token, err := t.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.TrimSpace(query)
	if q == "" {
		q = t.DefaultQuery
	}
	// 接口要求 max_results 在 10~100 之间，多取的部分在 finish 里截断
	maxResults := limit
	if maxResults < 10 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	params := url.Values{}
	params.Set("query", q+" -is:retweet")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", "created_at,author_id,referenced_tweets")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,profile_image_url")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/2/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			t.resetBearer()
		}
		return nil, fmt.Errorf("twitter: unexpected status %d", resp.StatusCode)
	}

	var body twitterSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, twitterMaxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("twitter: decode search: %w", err)
	}

	users := make(map[string]int, len(body.Includes.Users))
	for i, u := range body.Includes.Users {
		users[u.ID] = i
	}

	tweets := make([]Tweet, 0, len(body.Data))
	for _, d := range body.Data {
		tw := Tweet{ID: d.ID, Text: d.Text}
		if idx, ok := users[d.AuthorID]; ok {
			tw.ScreenName = body.Includes.Users[idx].Username
			tw.ProfileImage = body.Includes.Users[idx].ProfileImageURL
		}
		if ts, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
			tw.CreatedAt = &ts
		}
		for _, ref := range d.ReferencedTweets {
			if ref.Type == "retweeted" {
				tw.Retweet = true
			}
		}
		tweets = append(tweets, tw)
	}
	return tweets, nil
}

// bearerToken 优先使用配置的 bearer token，否则用 key/secret 换取 app-only token 并缓存
func (t *TwitterFetcher) bearerToken(ctx context.Context) (string, error) {
	if t.Creds.BearerToken != "" {
		return t.Creds.BearerToken, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bearer != "" {
		return t.bearer, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(url.QueryEscape(t.Creds.APIKey), url.QueryEscape(t.Creds.APISecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twitter: token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twitter: token: unexpected status %d", resp.StatusCode)
	}

	var tok struct {
		TokenType   string `json:"token_type"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, twitterMaxResponseBytes)).Decode(&tok); err != nil {
		return "", fmt.Errorf("twitter: decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("twitter: empty access token")
	}
	t.bearer = tok.AccessToken
	return t.bearer, nil
}

func (t *TwitterFetcher) resetBearer() {
	t.mu.Lock()
	t.bearer = ""
	t.mu.Unlock()
}
