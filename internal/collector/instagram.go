package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/MediaMon/internal/domain"
)

const (
	instagramBaseURL          = "https://i.instagram.com"
	instagramAppID            = "936619743392459"
	instagramMaxResponseBytes = 4 << 20 // 4MB
	instagramClientTimeout    = 10 * time.Second
)

// PhotoFetcher 抓取图片分享平台的账号帖子或话题帖子
type PhotoFetcher struct {
	Username string
	Password string
	Accounts []string
	BaseURL  string
	Client   *http.Client

	loginOnce sync.Once
}

func NewPhotoFetcher(username, password string, accounts []string) *PhotoFetcher {
	if len(accounts) == 0 {
		accounts = DefaultAccounts
	}
	jar, _ := cookiejar.New(nil)
	return &PhotoFetcher{
		Username: username,
		Password: password,
		Accounts: accounts,
		BaseURL:  instagramBaseURL,
		Client:   &http.Client{Timeout: instagramClientTimeout, Jar: jar},
	}
}

func (p *PhotoFetcher) Name() string            { return "instagram" }
func (p *PhotoFetcher) Kind() domain.SourceKind { return domain.KindInstagram }

func (p *PhotoFetcher) Enabled() bool {
	return p.Username != "" && p.Password != ""
}

type igNode struct {
	Shortcode          string `json:"shortcode"`
	TakenAtTimestamp   int64  `json:"taken_at_timestamp"`
	EdgeMediaToCaption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	Owner struct {
		Username string `json:"username"`
	} `json:"owner"`
}

type igEdges struct {
	Edges []struct {
		Node igNode `json:"node"`
	} `json:"edges"`
}

type igProfileResponse struct {
	Data struct {
		User struct {
			Username string  `json:"username"`
			Media    igEdges `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

type igHashtagResponse struct {
	Graphql struct {
		Hashtag struct {
			Media igEdges `json:"edge_hashtag_to_media"`
		} `json:"hashtag"`
	} `json:"graphql"`
}

func (p *PhotoFetcher) Fetch(ctx context.Context, query string, limit int) Result {
	if !p.Enabled() {
		log.Println("instagram: credentials not configured, skip")
		return disabled(p)
	}

	p.loginOnce.Do(func() {
		if err := p.login(ctx); err != nil {
			log.Printf("instagram: login failed: %v", err)
		}
	})

	if strings.HasPrefix(query, "#") {
		posts, err := p.hashtagPosts(ctx, strings.TrimLeft(query, "#"))
		if err != nil {
			log.Printf("instagram: hashtag %s: %v", query, err)
			return failed(p, err)
		}
		records := make([]Record, 0, len(posts))
		for _, post := range posts {
			records = append(records, post)
		}
		return finish(p, records, limit)
	}

	var records []Record
	var errs int
	for _, account := range p.Accounts {
		if ctx.Err() != nil {
			break
		}
		posts, err := p.accountPosts(ctx, account)
		if err != nil {
			log.Printf("instagram: fetch account %s: %v", account, err)
			errs++
			continue
		}
		count := 0
		for _, post := range posts {
			if limit >= 0 && count >= limit {
				break
			}
			if !containsFold(post.Caption, query) {
				continue
			}
			records = append(records, post)
			count++
		}
	}
	if len(records) == 0 && errs > 0 && errs == len(p.Accounts) {
		return failed(p, fmt.Errorf("instagram: all %d accounts failed", errs))
	}
	return finish(p, records, totalCap(limit, len(p.Accounts)))
}

func (p *PhotoFetcher) accountPosts(ctx context.Context, account string) ([]PhotoPost, error) {
	var body igProfileResponse
	endpoint := p.BaseURL + "/api/v1/users/web_profile_info/?username=" + url.QueryEscape(account)
	if err := p.getJSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	owner := body.Data.User.Username
	if owner == "" {
		owner = account
	}
	return postsFromEdges(body.Data.User.Media, owner), nil
}

func (p *PhotoFetcher) hashtagPosts(ctx context.Context, tag string) ([]PhotoPost, error) {
	var body igHashtagResponse
	endpoint := p.BaseURL + "/explore/tags/" + url.PathEscape(tag) + "/?__a=1&__d=dis"
	if err := p.getJSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	return postsFromEdges(body.Graphql.Hashtag.Media, ""), nil
}

func postsFromEdges(media igEdges, owner string) []PhotoPost {
	posts := make([]PhotoPost, 0, len(media.Edges))
	for _, edge := range media.Edges {
		n := edge.Node
		if n.Shortcode == "" {
			continue
		}
		post := PhotoPost{Shortcode: n.Shortcode, Owner: owner}
		if post.Owner == "" {
			post.Owner = n.Owner.Username
		}
		if len(n.EdgeMediaToCaption.Edges) > 0 {
			post.Caption = n.EdgeMediaToCaption.Edges[0].Node.Text
		}
		if n.TakenAtTimestamp > 0 {
			t := time.Unix(n.TakenAtTimestamp, 0)
			post.TakenAt = &t
		}
		posts = append(posts, post)
	}
	return posts
}

func (p *PhotoFetcher) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-IG-App-ID", instagramAppID)
	req.Header.Set("User-Agent", "Mozilla/5.0 MediaMonBot/1.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, instagramMaxResponseBytes)).Decode(out)
}

// login 尽力登录：先取 csrftoken，再提交账号密码；失败只记日志，匿名接口仍可尝试
func (p *PhotoFetcher) login(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/accounts/login/", nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	var csrf string
	if u, err := url.Parse(p.BaseURL); err == nil && p.Client.Jar != nil {
		for _, c := range p.Client.Jar.Cookies(u) {
			if c.Name == "csrftoken" {
				csrf = c.Value
			}
		}
	}

	form := url.Values{}
	form.Set("username", p.Username)
	form.Set("enc_password", "#PWD_INSTAGRAM_BROWSER:0:"+strconv.FormatInt(time.Now().Unix(), 10)+":"+p.Password)
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/accounts/login/ajax/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRFToken", csrf)
	req.Header.Set("X-IG-App-ID", instagramAppID)

	resp, err = p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Authenticated bool   `json:"authenticated"`
		Status        string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, instagramMaxResponseBytes)).Decode(&result); err != nil {
		return fmt.Errorf("decode login: %w", err)
	}
	if !result.Authenticated {
		return fmt.Errorf("not authenticated (status=%s)", result.Status)
	}
	return nil
}
